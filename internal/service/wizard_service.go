package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

type scheduleBackend interface {
	ListSlots(ctx context.Context, creds models.BackendCredentials) ([]models.Slot, error)
	ListInstructors(ctx context.Context, creds models.BackendCredentials, role string) ([]models.Instructor, error)
	GetClassroom(ctx context.Context, creds models.BackendCredentials, classID string) (*models.Classroom, error)
	AutoSchedulePreview(ctx context.Context, creds models.BackendCredentials, requests []models.AutoScheduleRequest) ([][]models.RawPreviewSession, error)
	AvailablePools(ctx context.Context, creds models.BackendCredentials, sessions []models.PoolQuery) ([][]models.Pool, error)
	DateRangeSchedule(ctx context.Context, creds models.BackendCredentials, startDate, endDate string) ([]models.ExistingSchedule, error)
	AddClassToSchedule(ctx context.Context, creds models.BackendCredentials, tuples []models.ScheduleTuple) error
}

type wizardMetrics interface {
	RecordWizardOpened()
	RecordWizardTransition(from, to models.WizardStep)
	RecordPoolSelections(mode string, count int)
	RecordCommit(success bool, sessions int)
}

// CommitHook runs after the backend accepted a commit.
type CommitHook func(ctx context.Context, result models.CommitResult)

// WizardServiceConfig governs wizard behaviour.
type WizardServiceConfig struct {
	InstructorRole string
	OnCommitted    CommitHook
}

// WizardService drives the scheduling wizard from class selection to commit.
type WizardService struct {
	backend   scheduleBackend
	store     WizardStore
	metrics   wizardMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       WizardServiceConfig
	now       func() time.Time
}

// NewWizardService wires wizard dependencies. A nil store keeps wizards in memory.
func NewWizardService(
	backend scheduleBackend,
	store WizardStore,
	metrics wizardMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg WizardServiceConfig,
) *WizardService {
	if store == nil {
		store = NewMemoryWizardStore(0)
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InstructorRole == "" {
		cfg.InstructorRole = "instructor"
	}
	return &WizardService{
		backend:   backend,
		store:     store,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Open starts a wizard for the tenant and side-loads the slot catalog.
func (s *WizardService) Open(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
	if creds.TenantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tenant id is required")
	}
	slots, err := s.backend.ListSlots(ctx, creds)
	if err != nil {
		return nil, err
	}
	now := s.now()
	wizard := &models.Wizard{
		ID:        uuid.NewString(),
		TenantID:  creds.TenantID,
		Step:      models.WizardStepConfigure,
		Classes:   []models.ClassPlan{},
		Slots:     slots,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, wizard); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store wizard")
	}
	s.metrics.RecordWizardOpened()
	s.logger.Info("schedule wizard opened",
		zap.String("wizard_id", wizard.ID),
		zap.String("tenant_id", creds.TenantID),
		zap.Int("slots", len(slots)),
	)
	return s.view(wizard), nil
}

// Get returns the current wizard view.
func (s *WizardService) Get(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error) {
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	return s.view(wizard), nil
}

// Close discards a wizard and everything cached on it.
func (s *WizardService) Close(ctx context.Context, creds models.BackendCredentials, id string) error {
	if _, err := s.load(ctx, creds, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close wizard")
	}
	s.logger.Info("schedule wizard closed", zap.String("wizard_id", id), zap.String("tenant_id", creds.TenantID))
	return nil
}

// SelectClass adds a class to the wizard after loading it from the backend.
func (s *WizardService) SelectClass(ctx context.Context, creds models.BackendCredentials, id string, req dto.SelectClassRequest) (*dto.WizardResponse, error) {
	if err := s.validate(req, "invalid class selection payload"); err != nil {
		return nil, err
	}
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep(wizard, models.WizardStepConfigure, "selecting a class"); err != nil {
		return nil, err
	}
	classroom, err := s.backend.GetClassroom(ctx, creds, req.ClassID)
	if err != nil {
		return nil, err
	}
	if err := addClass(wizard, *classroom); err != nil {
		return nil, err
	}
	return s.persist(ctx, wizard)
}

// DeselectClass removes a class and its configuration.
func (s *WizardService) DeselectClass(ctx context.Context, creds models.BackendCredentials, id, classID string) (*dto.WizardResponse, error) {
	return s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		return removeClass(w, classID)
	})
}

// ToggleSlot selects or deselects a slot for a class.
func (s *WizardService) ToggleSlot(ctx context.Context, creds models.BackendCredentials, id, classID, slotID string) (*dto.WizardResponse, error) {
	return s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		return toggleSlot(w, classID, slotID)
	})
}

// ToggleWeekday selects or deselects a Sunday-based weekday for a class.
func (s *WizardService) ToggleWeekday(ctx context.Context, creds models.BackendCredentials, id, classID string, day int) (*dto.WizardResponse, error) {
	return s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		return toggleWeekday(w, classID, day)
	})
}

// SetStartDate sets the first date a class may be scheduled on.
func (s *WizardService) SetStartDate(ctx context.Context, creds models.BackendCredentials, id, classID string, req dto.SetStartDateRequest) (*dto.WizardResponse, error) {
	if err := s.validate(req, "startDate must use the YYYY-MM-DD format"); err != nil {
		return nil, err
	}
	return s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		return setStartDate(w, classID, req.StartDate)
	})
}

// Advance moves the wizard forward one step when its guard passes. Entering
// the preview step generates sessions and resolves pools for every class.
func (s *WizardService) Advance(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error) {
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if err := requireIdle(wizard); err != nil {
		return nil, err
	}
	from := wizard.Step
	autoSelected := 0
	switch wizard.Step {
	case models.WizardStepConfigure:
		if err := validateConfiguration(wizard); err != nil {
			return nil, err
		}
		if err := s.generatePreview(ctx, creds, wizard); err != nil {
			return nil, err
		}
		indexes := make([]int, len(wizard.Classes))
		for i := range indexes {
			indexes[i] = i
		}
		selected, err := s.resolveCapacity(ctx, creds, wizard, indexes)
		if err != nil {
			return nil, err
		}
		autoSelected = selected
		wizard.Step = models.WizardStepPreview
	case models.WizardStepPreview:
		if issues := evaluateGate(wizard, detectDuplicates(wizard.Classes)); len(issues) > 0 {
			return nil, gateError(issues)
		}
		wizard.Step = models.WizardStepConfirm
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "wizard is on the last step; commit to finish")
	}

	resp, err := s.persist(ctx, wizard)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordWizardTransition(from, wizard.Step)
	s.metrics.RecordPoolSelections(selectionAuto, autoSelected)
	return resp, nil
}

// Retreat moves the wizard back one step. It is a no-op on the first step.
func (s *WizardService) Retreat(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error) {
	var from, to models.WizardStep
	resp, err := s.mutate(ctx, creds, id, func(w *models.Wizard) error {
		if err := requireIdle(w); err != nil {
			return err
		}
		from = w.Step
		retreat(w)
		to = w.Step
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != to {
		s.metrics.RecordWizardTransition(from, to)
	}
	return resp, nil
}

func (s *WizardService) load(ctx context.Context, creds models.BackendCredentials, id string) (*models.Wizard, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "wizard id is required")
	}
	wizard, err := s.store.Get(ctx, id)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wizard")
	}
	if wizard.TenantID != creds.TenantID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "wizard not found or expired")
	}
	return wizard, nil
}

func (s *WizardService) mutate(ctx context.Context, creds models.BackendCredentials, id string, fn func(*models.Wizard) error) (*dto.WizardResponse, error) {
	wizard, err := s.load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if err := fn(wizard); err != nil {
		return nil, err
	}
	return s.persist(ctx, wizard)
}

func (s *WizardService) persist(ctx context.Context, wizard *models.Wizard) (*dto.WizardResponse, error) {
	wizard.UpdatedAt = s.now()
	if err := s.store.Save(ctx, wizard); err != nil {
		if appErrors.Is(err, appErrors.ErrStaleWizard) || appErrors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("discarding wizard update", zap.String("wizard_id", wizard.ID), zap.Error(err))
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save wizard")
	}
	return s.view(wizard), nil
}

func (s *WizardService) view(wizard *models.Wizard) *dto.WizardResponse {
	duplicates := detectDuplicates(wizard.Classes)
	keys := make([]string, 0, len(duplicates))
	for key := range duplicates {
		keys = append(keys, key.String())
	}
	sort.Strings(keys)

	resp := &dto.WizardResponse{
		Wizard:     *wizard,
		StepName:   wizard.Step.String(),
		Duplicates: keys,
	}
	if wizard.Step != models.WizardStepConfigure {
		issues := evaluateGate(wizard, duplicates)
		if issues == nil {
			issues = []dto.GateIssue{}
		}
		resp.Gate = &dto.GateStatus{Ready: len(issues) == 0, Issues: issues}
	}
	return resp
}

func (s *WizardService) validate(req any, message string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}
