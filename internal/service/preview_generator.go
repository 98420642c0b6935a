package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

// buildPreviewRequests turns each class configuration into an auto-schedule
// request with weekdays in the backend's start-relative encoding.
func buildPreviewRequests(w *models.Wizard) ([]models.AutoScheduleRequest, error) {
	requests := make([]models.AutoScheduleRequest, 0, len(w.Classes))
	for _, plan := range w.Classes {
		start, err := parseDate(plan.Config.StartDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf(msgNoStartDate, plan.Classroom.DisplayName()))
		}
		requests = append(requests, models.AutoScheduleRequest{
			Classroom:       plan.Classroom.ID,
			MinTime:         plan.Config.MinTime,
			MaxTime:         plan.Config.MaxTime,
			SessionsPerWeek: plan.Config.SessionsPerWeek,
			Days:            toBackendWeekdays(plan.Config.WeekdayMask, start),
			StartDate:       plan.Config.StartDate,
		})
	}
	return requests, nil
}

// generatePreview replaces every class's sessions with a fresh backend
// preview. The instructor roster is loaded alongside when not cached yet.
// The wizard is only modified once every call succeeded.
func (s *WizardService) generatePreview(ctx context.Context, creds models.BackendCredentials, w *models.Wizard) error {
	requests, err := buildPreviewRequests(w)
	if err != nil {
		return err
	}

	var (
		batches [][]models.RawPreviewSession
		roster  []models.Instructor
	)
	needRoster := !w.InstructorsLoaded
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := s.backend.AutoSchedulePreview(gctx, creds, requests)
		if err != nil {
			return err
		}
		batches = result
		return nil
	})
	if needRoster {
		g.Go(func() error {
			result, err := s.backend.ListInstructors(gctx, creds, s.cfg.InstructorRole)
			if err != nil {
				return err
			}
			roster = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(batches) != len(w.Classes) {
		return appErrors.Clone(appErrors.ErrDataShape, fmt.Sprintf("preview returned %d session lists for %d classes", len(batches), len(w.Classes)))
	}

	if needRoster {
		w.Instructors = roster
		w.InstructorsLoaded = true
	}
	for i := range w.Classes {
		w.Classes[i].Sessions = enrichSessions(w, w.Classes[i].Classroom.ID, batches[i])
	}
	return nil
}

// enrichSessions resolves raw references against the wizard's catalogs.
// Unknown ids degrade to an "N/A" placeholder instead of failing the batch.
func enrichSessions(w *models.Wizard, classID string, raw []models.RawPreviewSession) []models.PlannedSession {
	sessions := make([]models.PlannedSession, 0, len(raw))
	for _, item := range raw {
		sessions = append(sessions, models.PlannedSession{
			CandidateSession: models.CandidateSession{
				Date:       normalizeDate(item.Date),
				Slot:       resolveSlot(w, item.Slot),
				Instructor: resolveInstructor(w, item.Instructor),
				ClassID:    classID,
			},
		})
	}
	sortSessionsByDate(sessions)
	return sessions
}

func resolveSlot(w *models.Wizard, ref models.EntityRef) models.Slot {
	if ref.ID == "" {
		title := ref.Title
		if title == "" {
			title = models.UnresolvedTitle
		}
		return models.Slot{Title: title}
	}
	if slot, ok := w.SlotByID(ref.ID); ok {
		return slot
	}
	return models.UnresolvedSlot(ref.ID)
}

func resolveInstructor(w *models.Wizard, ref models.EntityRef) models.Instructor {
	if ref.ID == "" {
		username := ref.Username
		if username == "" {
			username = models.UnresolvedTitle
		}
		return models.Instructor{Username: username}
	}
	if instructor, ok := w.InstructorByID(ref.ID); ok {
		return instructor
	}
	return models.UnresolvedInstructor(ref.ID)
}
