package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
)

// CommitLogRepository persists the trail of committed wizards.
type CommitLogRepository struct {
	db *sqlx.DB
}

// NewCommitLogRepository constructs the repository.
func NewCommitLogRepository(db *sqlx.DB) *CommitLogRepository {
	return &CommitLogRepository{db: db}
}

// Create inserts a commit log. Re-recording the same wizard is a no-op so
// retried jobs stay idempotent.
func (r *CommitLogRepository) Create(ctx context.Context, log *models.CommitLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.ClassIDs) == 0 {
		log.ClassIDs = []byte("[]")
	}

	const query = `INSERT INTO schedule_commit_logs (id, wizard_id, tenant_id, class_ids, session_count, auto_selected, manual_selected, committed_at, created_at)
		VALUES (:id, :wizard_id, :tenant_id, :class_ids, :session_count, :auto_selected, :manual_selected, :committed_at, :created_at)
		ON CONFLICT (wizard_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert commit log: %w", err)
	}
	return nil
}

// List returns commit logs for a tenant, newest first, with the total count.
func (r *CommitLogRepository) List(ctx context.Context, filter models.CommitLogFilter) ([]models.CommitLog, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_commit_logs WHERE tenant_id = $1`, filter.TenantID); err != nil {
		return nil, 0, fmt.Errorf("count commit logs: %w", err)
	}

	const query = `SELECT id, wizard_id, tenant_id, class_ids, session_count, auto_selected, manual_selected, committed_at, created_at
		FROM schedule_commit_logs WHERE tenant_id = $1 ORDER BY committed_at DESC LIMIT $2 OFFSET $3`
	logs := make([]models.CommitLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, filter.TenantID, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list commit logs: %w", err)
	}
	return logs, total, nil
}
