package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/jobs"
)

const commitLogJobType = "schedule_commit_log"

type commitLogStore interface {
	Create(ctx context.Context, log *models.CommitLog) error
	List(ctx context.Context, filter models.CommitLogFilter) ([]models.CommitLog, int, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// CommitLogService records committed wizards and lists the history.
type CommitLogService struct {
	repo      commitLogStore
	queue     jobDispatcher
	metrics   queryObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommitLogService constructs the service. Without a queue, Record writes
// synchronously.
func NewCommitLogService(repo commitLogStore, queue jobDispatcher, metrics queryObserver, logger *zap.Logger) *CommitLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	return &CommitLogService{repo: repo, queue: queue, metrics: metrics, validator: validator.New(), logger: logger}
}

// Record is the wizard completion hook. Failures are logged, never returned:
// the backend already accepted the schedule.
func (s *CommitLogService) Record(ctx context.Context, result models.CommitResult) {
	entry, err := newCommitLog(result)
	if err != nil {
		s.logger.Error("failed to build commit log", zap.String("wizard_id", result.WizardID), zap.Error(err))
		return
	}
	if s.queue == nil {
		if err := s.store(ctx, entry); err != nil {
			s.logger.Error("failed to store commit log", zap.String("wizard_id", result.WizardID), zap.Error(err))
		}
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: commitLogJobType, Payload: entry}); err != nil {
		s.logger.Error("failed to enqueue commit log", zap.String("wizard_id", result.WizardID), zap.Error(err))
	}
}

// List returns one page of the tenant's commit history.
func (s *CommitLogService) List(ctx context.Context, tenantID string, query dto.CommitLogQuery) ([]models.CommitLog, *models.Pagination, error) {
	if tenantID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "tenant id is required")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "page must be positive and pageSize between 1 and 100")
	}
	start := time.Now()
	logs, total, err := s.repo.List(ctx, models.CommitLogFilter{TenantID: tenantID, Page: query.Page, PageSize: query.PageSize})
	s.metrics.ObserveDBQuery("commit_logs_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list commit logs")
	}
	page, size := normalisePage(query.Page, query.PageSize)
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Handle is the queue handler persisting a commit log payload.
func (s *CommitLogService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.CommitLog)
	if !ok || entry == nil {
		s.logger.Error("unexpected commit log payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	return s.store(ctx, entry)
}

func (s *CommitLogService) store(ctx context.Context, entry *models.CommitLog) error {
	start := time.Now()
	err := s.repo.Create(ctx, entry)
	s.metrics.ObserveDBQuery("commit_logs_insert", time.Since(start))
	return err
}

func newCommitLog(result models.CommitResult) (*models.CommitLog, error) {
	classIDs, err := json.Marshal(result.ClassIDs)
	if err != nil {
		return nil, err
	}
	return &models.CommitLog{
		ID:             uuid.NewString(),
		WizardID:       result.WizardID,
		TenantID:       result.TenantID,
		ClassIDs:       types.JSONText(classIDs),
		SessionCount:   len(result.Tuples),
		AutoSelected:   result.AutoSelected,
		ManualSelected: result.ManualSelected,
		CommittedAt:    result.CommittedAt,
	}, nil
}

func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
