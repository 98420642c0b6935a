package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

type commitPlan struct {
	tuples   []models.ScheduleTuple
	classIDs []string
	auto     int
	manual   int
}

// buildCommitPlan flattens every session into a schedule tuple. A session
// without a usable pool selection aborts the commit before any backend call.
func buildCommitPlan(w *models.Wizard) (commitPlan, error) {
	plan := commitPlan{classIDs: make([]string, 0, len(w.Classes))}
	for _, class := range w.Classes {
		plan.classIDs = append(plan.classIDs, class.Classroom.ID)
		for i, session := range class.Sessions {
			key := models.SessionKey{ClassID: class.Classroom.ID, Index: i}
			pool, ok := session.SelectedPool()
			if !ok {
				return commitPlan{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session %s has no pool selected", key))
			}
			if session.Selection.Auto {
				plan.auto++
			} else {
				plan.manual++
			}
			plan.tuples = append(plan.tuples, models.ScheduleTuple{
				Date:       normalizeDate(session.Date),
				Slot:       session.Slot.ID,
				Classroom:  class.Classroom.ID,
				Instructor: session.Instructor.ID,
				Pool:       pool.ID,
			})
		}
	}
	if len(plan.tuples) == 0 {
		return commitPlan{}, appErrors.Clone(appErrors.ErrValidation, "there are no sessions to commit")
	}
	return plan, nil
}

// Commit submits the finalised sessions. The wizard is claimed with a
// revision-checked save first, so a concurrent commit or edit fails instead
// of racing the backend call. On success the wizard is closed and the
// completion hook runs; on failure the claim is released and it stays on the
// confirm step.
func (s *WizardService) Commit(ctx context.Context, creds models.BackendCredentials, id string) (*dto.CommitResponse, error) {
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep(wizard, models.WizardStepConfirm, "committing"); err != nil {
		return nil, err
	}
	plan, err := buildCommitPlan(wizard)
	if err != nil {
		return nil, err
	}

	wizard.Committing = true
	if _, err := s.persist(ctx, wizard); err != nil {
		return nil, err
	}

	if err := s.backend.AddClassToSchedule(ctx, creds, plan.tuples); err != nil {
		s.metrics.RecordCommit(false, 0)
		s.releaseCommit(ctx, wizard)
		s.logger.Warn("schedule commit failed",
			zap.String("wizard_id", wizard.ID),
			zap.String("tenant_id", creds.TenantID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.store.Delete(ctx, wizard.ID); err != nil {
		s.logger.Warn("failed to close committed wizard", zap.String("wizard_id", wizard.ID), zap.Error(err))
	}
	s.metrics.RecordCommit(true, len(plan.tuples))

	result := models.CommitResult{
		WizardID:       wizard.ID,
		TenantID:       wizard.TenantID,
		ClassIDs:       plan.classIDs,
		Tuples:         plan.tuples,
		AutoSelected:   plan.auto,
		ManualSelected: plan.manual,
		CommittedAt:    s.now(),
	}
	if s.cfg.OnCommitted != nil {
		s.cfg.OnCommitted(ctx, result)
	}
	s.logger.Info("schedule committed",
		zap.String("wizard_id", wizard.ID),
		zap.String("tenant_id", wizard.TenantID),
		zap.Int("classes", len(plan.classIDs)),
		zap.Int("sessions", len(plan.tuples)),
	)

	return &dto.CommitResponse{
		WizardID:       wizard.ID,
		ClassIDs:       plan.classIDs,
		Sessions:       len(plan.tuples),
		AutoSelected:   plan.auto,
		ManualSelected: plan.manual,
	}, nil
}

func (s *WizardService) releaseCommit(ctx context.Context, wizard *models.Wizard) {
	wizard.Committing = false
	if _, err := s.persist(context.WithoutCancel(ctx), wizard); err != nil {
		s.logger.Warn("failed to release commit claim", zap.String("wizard_id", wizard.ID), zap.Error(err))
	}
}
