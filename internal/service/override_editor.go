package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

// Instructors returns the roster used by the session editor. It is fetched
// once per wizard and cached on it.
func (s *WizardService) Instructors(ctx context.Context, creds models.BackendCredentials, id string) ([]models.Instructor, error) {
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if wizard.InstructorsLoaded {
		return wizard.Instructors, nil
	}
	if err := s.ensureInstructors(ctx, creds, wizard); err != nil {
		return nil, err
	}
	if _, err := s.persist(ctx, wizard); err != nil {
		s.logger.Warn("instructor roster not cached", zap.String("wizard_id", wizard.ID), zap.Error(err))
	}
	return wizard.Instructors, nil
}

// EditSession overrides date, slot or instructor of one session. The class is
// re-sorted by date, all of its pool selections are dropped and its capacity
// is resolved again. Other classes are not touched.
func (s *WizardService) EditSession(ctx context.Context, creds models.BackendCredentials, id string, key models.SessionKey, req dto.EditSessionRequest) (*dto.WizardResponse, error) {
	if err := s.validate(req, "invalid session edit payload"); err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide at least one of date, slotId or instructorId")
	}
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep(wizard, models.WizardStepPreview, "editing a session"); err != nil {
		return nil, err
	}
	classIdx, err := sessionIndex(wizard, key)
	if err != nil {
		return nil, err
	}
	if req.InstructorID != nil {
		if err := s.ensureInstructors(ctx, creds, wizard); err != nil {
			return nil, err
		}
	}

	plan := &wizard.Classes[classIdx]
	session := plan.Sessions[key.Index].CandidateSession
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use the YYYY-MM-DD format")
		}
		session.Date = date.Format(dateLayout)
	}
	if req.SlotID != nil {
		slot, ok := wizard.SlotByID(*req.SlotID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s does not exist", *req.SlotID))
		}
		session.Slot = slot
	}
	if req.InstructorID != nil {
		instructor, ok := wizard.InstructorByID(*req.InstructorID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("instructor %s does not exist", *req.InstructorID))
		}
		session.Instructor = instructor
	}

	plan.Sessions[key.Index].CandidateSession = session
	sortSessionsByDate(plan.Sessions)
	plan.ClearSelections()

	selected, err := s.resolveCapacity(ctx, creds, wizard, []int{classIdx})
	if err != nil {
		return nil, err
	}
	resp, err := s.persist(ctx, wizard)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPoolSelections(selectionAuto, selected)
	s.logger.Debug("session edited",
		zap.String("wizard_id", wizard.ID),
		zap.String("session", key.String()),
	)
	return resp, nil
}

// SelectPool records an operator's pool choice for one session.
func (s *WizardService) SelectPool(ctx context.Context, creds models.BackendCredentials, id string, key models.SessionKey, req dto.SelectPoolRequest) (*dto.WizardResponse, error) {
	if err := s.validate(req, "invalid pool selection payload"); err != nil {
		return nil, err
	}
	resp, err := s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		if err := requireStep(w, models.WizardStepPreview, "selecting a pool"); err != nil {
			return err
		}
		classIdx, err := sessionIndex(w, key)
		if err != nil {
			return err
		}
		session := &w.Classes[classIdx].Sessions[key.Index]
		for _, pool := range session.Pools {
			if pool.ID == req.PoolID {
				session.Selection = &models.PoolSelection{PoolID: pool.ID, Auto: false}
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("pool %s is not available for session %s", req.PoolID, key))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPoolSelections(selectionManual, 1)
	return resp, nil
}

func (s *WizardService) ensureInstructors(ctx context.Context, creds models.BackendCredentials, w *models.Wizard) error {
	if w.InstructorsLoaded {
		return nil
	}
	roster, err := s.backend.ListInstructors(ctx, creds, s.cfg.InstructorRole)
	if err != nil {
		return err
	}
	w.Instructors = roster
	w.InstructorsLoaded = true
	return nil
}

func sessionIndex(w *models.Wizard, key models.SessionKey) (int, error) {
	for i := range w.Classes {
		if w.Classes[i].Classroom.ID != key.ClassID {
			continue
		}
		if key.Index < 0 || key.Index >= len(w.Classes[i].Sessions) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("session %s does not exist", key))
		}
		return i, nil
	}
	return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s is not part of this wizard", key.ClassID))
}
