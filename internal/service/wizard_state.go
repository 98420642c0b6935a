package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

// Operator-facing messages for the configure step guard.
const (
	msgNoClassSelected = "select at least one class"
	msgNoSlot          = "class %q: select at least one slot"
	msgNoWeekday       = "class %q: select at least one weekday"
	msgNoStartDate     = "class %q: start date is required"
)

// requireIdle rejects changes while a commit holds the wizard.
func requireIdle(w *models.Wizard) error {
	if w.Committing {
		return appErrors.Clone(appErrors.ErrConflict, "a commit for this wizard is in progress")
	}
	return nil
}

func requireStep(w *models.Wizard, step models.WizardStep, action string) error {
	if err := requireIdle(w); err != nil {
		return err
	}
	if w.Step != step {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s is only allowed on the %s step (wizard is on %s)", action, step, w.Step))
	}
	return nil
}

func classPlan(w *models.Wizard, classID string) (*models.ClassPlan, error) {
	plan, ok := w.Class(classID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s is not part of this wizard", classID))
	}
	return plan, nil
}

func addClass(w *models.Wizard, classroom models.Classroom) error {
	if err := requireStep(w, models.WizardStepConfigure, "selecting a class"); err != nil {
		return err
	}
	if _, exists := w.Class(classroom.ID); exists {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class %q is already selected", classroom.DisplayName()))
	}
	w.Classes = append(w.Classes, models.ClassPlan{
		Classroom: classroom,
		Config: models.ScheduleConfig{
			SlotIDs:     []string{},
			WeekdayMask: []int{},
		},
	})
	return nil
}

func removeClass(w *models.Wizard, classID string) error {
	if err := requireStep(w, models.WizardStepConfigure, "removing a class"); err != nil {
		return err
	}
	for i := range w.Classes {
		if w.Classes[i].Classroom.ID == classID {
			w.Classes = append(w.Classes[:i:i], w.Classes[i+1:]...)
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s is not part of this wizard", classID))
}

// toggleSlot selects or deselects a slot. A third concurrent slot is rejected
// instead of evicting an earlier choice.
func toggleSlot(w *models.Wizard, classID, slotID string) error {
	if err := requireStep(w, models.WizardStepConfigure, "changing slots"); err != nil {
		return err
	}
	plan, err := classPlan(w, classID)
	if err != nil {
		return err
	}
	cfg := &plan.Config
	if cfg.HasSlot(slotID) {
		kept := make([]string, 0, len(cfg.SlotIDs))
		for _, id := range cfg.SlotIDs {
			if id != slotID {
				kept = append(kept, id)
			}
		}
		cfg.SlotIDs = kept
	} else {
		if _, ok := w.SlotByID(slotID); !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s does not exist", slotID))
		}
		if len(cfg.SlotIDs) >= models.MaxSlotsPerClass {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %q: at most %d slots can be selected; deselect one first", plan.Classroom.DisplayName(), models.MaxSlotsPerClass))
		}
		cfg.SlotIDs = append(cfg.SlotIDs, slotID)
	}

	selected := make([]models.Slot, 0, len(cfg.SlotIDs))
	for _, id := range cfg.SlotIDs {
		if slot, ok := w.SlotByID(id); ok {
			selected = append(selected, slot)
		}
	}
	cfg.MinTime, cfg.MaxTime = deriveTimeWindow(selected)
	return nil
}

func toggleWeekday(w *models.Wizard, classID string, day int) error {
	if err := requireStep(w, models.WizardStepConfigure, "changing weekdays"); err != nil {
		return err
	}
	if day < 0 || day > 6 {
		return appErrors.Clone(appErrors.ErrValidation, "weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	plan, err := classPlan(w, classID)
	if err != nil {
		return err
	}
	plan.Config.WeekdayMask = toggleInt(plan.Config.WeekdayMask, day)
	plan.Config.SessionsPerWeek = len(plan.Config.WeekdayMask)
	return nil
}

func setStartDate(w *models.Wizard, classID, raw string) error {
	if err := requireStep(w, models.WizardStepConfigure, "changing the start date"); err != nil {
		return err
	}
	plan, err := classPlan(w, classID)
	if err != nil {
		return err
	}
	date, err := parseDate(raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startDate must use the YYYY-MM-DD format")
	}
	plan.Config.StartDate = date.Format(dateLayout)
	return nil
}

// validateConfiguration is the configure -> preview guard. Every problem is
// collected into one message so the operator sees all offending classes.
func validateConfiguration(w *models.Wizard) error {
	if len(w.Classes) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, msgNoClassSelected)
	}
	var problems []string
	for _, plan := range w.Classes {
		name := plan.Classroom.DisplayName()
		if len(plan.Config.SlotIDs) == 0 {
			problems = append(problems, fmt.Sprintf(msgNoSlot, name))
		}
		if len(plan.Config.WeekdayMask) == 0 {
			problems = append(problems, fmt.Sprintf(msgNoWeekday, name))
		}
		if plan.Config.StartDate == "" {
			problems = append(problems, fmt.Sprintf(msgNoStartDate, name))
		}
	}
	if len(problems) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// evaluateGate checks the "all green" rule: every session of every class has
// a selected pool without warnings and is not a duplicate.
func evaluateGate(w *models.Wizard, duplicates models.DuplicateConflictSet) []dto.GateIssue {
	var issues []dto.GateIssue
	for _, plan := range w.Classes {
		if len(plan.Sessions) == 0 {
			issues = append(issues, dto.GateIssue{
				Key:     plan.Classroom.ID,
				Reasons: []string{fmt.Sprintf("class %q has no generated sessions", plan.Classroom.DisplayName())},
			})
			continue
		}
		for i, session := range plan.Sessions {
			key := models.SessionKey{ClassID: plan.Classroom.ID, Index: i}
			var reasons []string
			pool, ok := session.SelectedPool()
			switch {
			case session.Selection == nil:
				reasons = append(reasons, "no pool selected")
			case !ok:
				reasons = append(reasons, "selected pool is no longer available")
			default:
				if pool.HasAgeWarning {
					reasons = append(reasons, "pool does not accept the class age group")
				}
				if pool.HasInstructorConflict {
					reasons = append(reasons, "instructor is already teaching at this time")
				}
				if pool.HasCapacityWarning {
					reasons = append(reasons, "pool capacity is below the course maximum")
				}
			}
			if duplicates.Has(key) {
				reasons = append(reasons, "duplicate session")
			}
			if len(reasons) > 0 {
				issues = append(issues, dto.GateIssue{Key: key.String(), Reasons: reasons})
			}
		}
	}
	return issues
}

func gateError(issues []dto.GateIssue) error {
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		keys = append(keys, issue.Key)
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("resolve every warning before continuing: %s", strings.Join(keys, ", ")))
}

func retreat(w *models.Wizard) {
	switch w.Step {
	case models.WizardStepConfirm:
		w.Step = models.WizardStepPreview
	case models.WizardStepPreview:
		w.Step = models.WizardStepConfigure
		for i := range w.Classes {
			w.Classes[i].Sessions = nil
		}
	}
}
