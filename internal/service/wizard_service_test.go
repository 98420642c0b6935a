package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

var testCreds = models.BackendCredentials{TenantID: "tenant-1", Token: "token"}

type backendStub struct {
	mu          sync.Mutex
	slots       []models.Slot
	instructors []models.Instructor
	classrooms  map[string]models.Classroom
	events      []models.ExistingSchedule

	previewFn func(reqs []models.AutoScheduleRequest) ([][]models.RawPreviewSession, error)
	poolsFn   func(queries []models.PoolQuery) ([][]models.Pool, error)
	eventsErr error
	commitErr error
	// holdCommit blocks AddClassToSchedule until closed.
	holdCommit chan struct{}

	previewRequests []models.AutoScheduleRequest
	poolQueries     [][]models.PoolQuery
	instructorCalls int
	commitCalls     int
	committed       []models.ScheduleTuple
}

func newBackendStub() *backendStub {
	return &backendStub{
		slots: []models.Slot{
			{ID: "s1", Title: "Early", StartTime: 7, EndTime: 8},
			{ID: "s2", Title: "Late", StartTime: 8, EndTime: 8, EndMinute: 45},
		},
		instructors: []models.Instructor{{ID: "i1", Username: "ana"}, {ID: "i2", Username: "budi"}},
		classrooms: map[string]models.Classroom{
			"c1": {ID: "c1", Title: "Dolphins", Course: models.Course{MaxMember: 5, AgeType: "kids"}},
			"c2": {ID: "c2", Title: "Sharks", Course: models.Course{MaxMember: 8, AgeType: "adult"}},
		},
	}
}

func (b *backendStub) ListSlots(context.Context, models.BackendCredentials) ([]models.Slot, error) {
	return b.slots, nil
}

func (b *backendStub) ListInstructors(context.Context, models.BackendCredentials, string) ([]models.Instructor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instructorCalls++
	return b.instructors, nil
}

func (b *backendStub) GetClassroom(_ context.Context, _ models.BackendCredentials, classID string) (*models.Classroom, error) {
	classroom, ok := b.classrooms[classID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	return &classroom, nil
}

// AutoSchedulePreview returns three sessions per class, out of date order.
// Class c1 is taught by i1 and every other class by i2.
func (b *backendStub) AutoSchedulePreview(_ context.Context, _ models.BackendCredentials, reqs []models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
	b.mu.Lock()
	b.previewRequests = append(b.previewRequests, reqs...)
	fn := b.previewFn
	b.mu.Unlock()
	if fn != nil {
		return fn(reqs)
	}
	result := make([][]models.RawPreviewSession, 0, len(reqs))
	for _, req := range reqs {
		instructor := "i2"
		if req.Classroom == "c1" {
			instructor = "i1"
		}
		result = append(result, []models.RawPreviewSession{
			{Date: "2025-01-08T00:00:00.000Z", Slot: models.EntityRef{ID: "s1"}, Instructor: models.EntityRef{ID: instructor}},
			{Date: "2025-01-06T00:00:00.000Z", Slot: models.EntityRef{ID: "s1"}, Instructor: models.EntityRef{ID: instructor}},
			{Date: "2025-01-13T00:00:00.000Z", Slot: models.EntityRef{ID: "s1"}, Instructor: models.EntityRef{ID: instructor}},
		})
	}
	return result, nil
}

func (b *backendStub) AvailablePools(_ context.Context, _ models.BackendCredentials, queries []models.PoolQuery) ([][]models.Pool, error) {
	b.mu.Lock()
	b.poolQueries = append(b.poolQueries, queries)
	fn := b.poolsFn
	b.mu.Unlock()
	if fn != nil {
		return fn(queries)
	}
	result := make([][]models.Pool, len(queries))
	for i := range queries {
		result[i] = []models.Pool{
			{ID: "p1", Title: "Lap", Capacity: 20, RemainingCapacity: 12, AgeType: models.AgeTypes{"mixed"}},
			{ID: "p2", Title: "Shallow", Capacity: 10, RemainingCapacity: 10, AgeType: models.AgeTypes{"kids"}},
		}
	}
	return result, nil
}

func (b *backendStub) DateRangeSchedule(context.Context, models.BackendCredentials, string, string) ([]models.ExistingSchedule, error) {
	if b.eventsErr != nil {
		return nil, b.eventsErr
	}
	return b.events, nil
}

func (b *backendStub) AddClassToSchedule(_ context.Context, _ models.BackendCredentials, tuples []models.ScheduleTuple) error {
	b.mu.Lock()
	b.commitCalls++
	hold := b.holdCommit
	b.mu.Unlock()
	if hold != nil {
		<-hold
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.commitErr != nil {
		return b.commitErr
	}
	b.committed = append(b.committed, tuples...)
	return nil
}

func (b *backendStub) commitCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commitCalls
}

func newTestWizardService(backend *backendStub, cfg WizardServiceConfig) (*WizardService, *MemoryWizardStore) {
	store := NewMemoryWizardStore(0)
	return NewWizardService(backend, store, nil, nil, nil, cfg), store
}

// configureWizard opens a wizard with the given classes, each on slot s1,
// Monday and Wednesday, starting Friday 2025-01-03.
func configureWizard(t *testing.T, svc *WizardService, classIDs ...string) string {
	t.Helper()
	ctx := context.Background()
	resp, err := svc.Open(ctx, testCreds)
	require.NoError(t, err)
	id := resp.Wizard.ID
	for _, classID := range classIDs {
		_, err = svc.SelectClass(ctx, testCreds, id, dto.SelectClassRequest{ClassID: classID})
		require.NoError(t, err)
		_, err = svc.ToggleSlot(ctx, testCreds, id, classID, "s1")
		require.NoError(t, err)
		_, err = svc.ToggleWeekday(ctx, testCreds, id, classID, 1)
		require.NoError(t, err)
		_, err = svc.ToggleWeekday(ctx, testCreds, id, classID, 3)
		require.NoError(t, err)
		_, err = svc.SetStartDate(ctx, testCreds, id, classID, dto.SetStartDateRequest{StartDate: "2025-01-03"})
		require.NoError(t, err)
	}
	return id
}

func TestWizardServiceFullFlow(t *testing.T) {
	backend := newBackendStub()
	var committed []models.CommitResult
	svc, store := newTestWizardService(backend, WizardServiceConfig{
		OnCommitted: func(_ context.Context, result models.CommitResult) { committed = append(committed, result) },
	})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	resp, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepPreview, resp.Wizard.Step)
	require.Len(t, backend.previewRequests, 1)
	assert.Equal(t, []int{3, 5}, backend.previewRequests[0].Days)
	assert.Equal(t, 2, backend.previewRequests[0].SessionsPerWeek)
	assert.Equal(t, 7.0, backend.previewRequests[0].MinTime)
	assert.Equal(t, 8.0, backend.previewRequests[0].MaxTime)

	sessions := resp.Wizard.Classes[0].Sessions
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{"2025-01-06", "2025-01-08", "2025-01-13"}, []string{sessions[0].Date, sessions[1].Date, sessions[2].Date})
	assert.Equal(t, "Early", sessions[0].Slot.Title)
	assert.Equal(t, "ana", sessions[0].Instructor.Username)
	for _, session := range sessions {
		require.NotNil(t, session.Selection)
		assert.Equal(t, "p1", session.Selection.PoolID)
		assert.True(t, session.Selection.Auto)
	}
	require.NotNil(t, resp.Gate)
	assert.True(t, resp.Gate.Ready)

	resp, err = svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfirm, resp.Wizard.Step)

	result, err := svc.Commit(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Sessions)
	assert.Equal(t, 3, result.AutoSelected)
	require.Len(t, backend.committed, 3)
	for _, tuple := range backend.committed {
		assert.Equal(t, "c1", tuple.Classroom)
		assert.Equal(t, "s1", tuple.Slot)
		assert.Equal(t, "i1", tuple.Instructor)
		assert.Equal(t, "p1", tuple.Pool)
	}
	assert.Equal(t, "2025-01-06", backend.committed[0].Date)

	require.Len(t, committed, 1)
	assert.Equal(t, []string{"c1"}, committed[0].ClassIDs)

	_, err = store.Get(ctx, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWizardServiceAdvanceValidatesConfiguration(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()

	resp, err := svc.Open(ctx, testCreds)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, testCreds, resp.Wizard.ID)
	require.Error(t, err)
	assert.Equal(t, msgNoClassSelected, appErrors.FromError(err).Message)

	_, err = svc.SelectClass(ctx, testCreds, resp.Wizard.ID, dto.SelectClassRequest{ClassID: "c1"})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, testCreds, resp.Wizard.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, backend.previewRequests)
}

func TestWizardServicePreviewShapeErrorKeepsFirstStep(t *testing.T) {
	backend := newBackendStub()
	backend.previewFn = func([]models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
		return nil, appErrors.Clone(appErrors.ErrDataShape, "expected a list")
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	_, err := svc.Advance(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDataShape))

	resp, err := svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfigure, resp.Wizard.Step)
	assert.Empty(t, resp.Wizard.Classes[0].Sessions)
}

func TestWizardServicePreviewBatchCountMismatch(t *testing.T) {
	backend := newBackendStub()
	backend.previewFn = func([]models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
		return [][]models.RawPreviewSession{}, nil
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	id := configureWizard(t, svc, "c1")

	_, err := svc.Advance(context.Background(), testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDataShape))
}

func TestWizardServiceUnknownReferencesDegradeToPlaceholder(t *testing.T) {
	backend := newBackendStub()
	backend.previewFn = func([]models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
		return [][]models.RawPreviewSession{{
			{Date: "2025-01-06", Slot: models.EntityRef{ID: "ghost-slot"}, Instructor: models.EntityRef{ID: "ghost"}},
		}}, nil
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	id := configureWizard(t, svc, "c1")

	resp, err := svc.Advance(context.Background(), testCreds, id)
	require.NoError(t, err)
	session := resp.Wizard.Classes[0].Sessions[0]
	assert.Equal(t, models.Slot{ID: "ghost-slot", Title: "N/A"}, session.Slot)
	assert.Equal(t, "N/A", session.Instructor.Username)
	assert.Equal(t, "ghost", session.Instructor.ID)
}

func TestWizardServiceCapacityFailureAppliesNothing(t *testing.T) {
	backend := newBackendStub()
	backend.eventsErr = appErrors.Clone(appErrors.ErrBackend, "range lookup failed")
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1", "c2")

	_, err := svc.Advance(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBackend))

	resp, err := svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfigure, resp.Wizard.Step)
	for _, plan := range resp.Wizard.Classes {
		assert.Empty(t, plan.Sessions)
	}
}

func TestWizardServicePoolCountMismatchIsShapeError(t *testing.T) {
	backend := newBackendStub()
	backend.poolsFn = func(queries []models.PoolQuery) ([][]models.Pool, error) {
		return make([][]models.Pool, len(queries)-1), nil
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	id := configureWizard(t, svc, "c1")

	_, err := svc.Advance(context.Background(), testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDataShape))
}

func TestWizardServiceGateBlocksWarnings(t *testing.T) {
	backend := newBackendStub()
	backend.poolsFn = func(queries []models.PoolQuery) ([][]models.Pool, error) {
		result := make([][]models.Pool, len(queries))
		for i := range queries {
			result[i] = []models.Pool{{ID: "p9", Title: "Tiny", Capacity: 4, RemainingCapacity: 2, AgeType: models.AgeTypes{"kids"}}}
		}
		return result, nil
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	resp, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	require.NotNil(t, resp.Gate)
	assert.False(t, resp.Gate.Ready)
	assert.Len(t, resp.Gate.Issues, 3)

	_, err = svc.Advance(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Contains(t, err.Error(), "c1-0")

	resp, err = svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepPreview, resp.Wizard.Step)
}

func TestWizardServiceGateBlocksDuplicates(t *testing.T) {
	backend := newBackendStub()
	backend.previewFn = func(reqs []models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
		result := make([][]models.RawPreviewSession, len(reqs))
		for i := range reqs {
			result[i] = []models.RawPreviewSession{{Date: "2025-01-06", Slot: models.EntityRef{ID: "s1"}, Instructor: models.EntityRef{ID: "i1"}}}
		}
		return result, nil
	}
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1", "c2")

	resp, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1-0", "c2-0"}, resp.Duplicates)

	_, err = svc.Advance(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestWizardServiceEditSessionResortsAndClearsOnlyThatClass(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1", "c2")

	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	_, err = svc.SelectPool(ctx, testCreds, id, models.SessionKey{ClassID: "c2", Index: 1}, dto.SelectPoolRequest{PoolID: "p2"})
	require.NoError(t, err)
	_, err = svc.SelectPool(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 2}, dto.SelectPoolRequest{PoolID: "p2"})
	require.NoError(t, err)

	backend.poolQueries = nil
	date := "2025-01-01"
	instructor := "i2"
	resp, err := svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 2}, dto.EditSessionRequest{Date: &date, InstructorID: &instructor})
	require.NoError(t, err)

	c1 := resp.Wizard.Classes[0].Sessions
	assert.Equal(t, "2025-01-01", c1[0].Date)
	assert.Equal(t, "budi", c1[0].Instructor.Username)
	assert.Equal(t, "2025-01-06", c1[1].Date)
	for _, session := range c1 {
		require.NotNil(t, session.Selection)
		assert.True(t, session.Selection.Auto)
	}

	c2 := resp.Wizard.Classes[1].Sessions
	require.NotNil(t, c2[1].Selection)
	assert.Equal(t, "p2", c2[1].Selection.PoolID)
	assert.False(t, c2[1].Selection.Auto)

	require.Len(t, backend.poolQueries, 1)
	assert.Len(t, backend.poolQueries[0], 3)
}

func TestWizardServiceEditSessionValidation(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	slot := "s2"
	_, err := svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 0}, dto.EditSessionRequest{SlotID: &slot})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	_, err = svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 0}, dto.EditSessionRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	missing := "nobody"
	_, err = svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 0}, dto.EditSessionRequest{InstructorID: &missing})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 9}, dto.EditSessionRequest{SlotID: &slot})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	resp, err := svc.EditSession(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 0}, dto.EditSessionRequest{SlotID: &slot})
	require.NoError(t, err)
	assert.Equal(t, "Late", resp.Wizard.Classes[0].Sessions[0].Slot.Title)
}

func TestWizardServiceSelectPoolRejectsUnknownPool(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")
	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	_, err = svc.SelectPool(ctx, testCreds, id, models.SessionKey{ClassID: "c1", Index: 0}, dto.SelectPoolRequest{PoolID: "p404"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWizardServiceInstructorsAreCached(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	resp, err := svc.Open(ctx, testCreds)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		roster, err := svc.Instructors(ctx, testCreds, resp.Wizard.ID)
		require.NoError(t, err)
		assert.Len(t, roster, 2)
	}
	assert.Equal(t, 1, backend.instructorCalls)
}

func TestWizardServiceCommitFailureStaysOnConfirm(t *testing.T) {
	backend := newBackendStub()
	hookCalls := 0
	svc, _ := newTestWizardService(backend, WizardServiceConfig{
		OnCommitted: func(context.Context, models.CommitResult) { hookCalls++ },
	})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")
	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	backend.commitErr = appErrors.Wrap(errors.New("boom"), appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "backend down")
	_, err = svc.Commit(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBackend))
	assert.Zero(t, hookCalls)

	resp, err := svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfirm, resp.Wizard.Step)
	assert.False(t, resp.Wizard.Committing)

	backend.commitErr = nil
	_, err = svc.Commit(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, 1, hookCalls)
}

func TestWizardServiceCommitClaimsWizard(t *testing.T) {
	backend := newBackendStub()
	hookCalls := 0
	svc, _ := newTestWizardService(backend, WizardServiceConfig{
		OnCommitted: func(context.Context, models.CommitResult) { hookCalls++ },
	})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")
	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	release := make(chan struct{})
	backend.holdCommit = release

	type outcome struct {
		resp *dto.CommitResponse
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		resp, err := svc.Commit(ctx, testCreds, id)
		first <- outcome{resp, err}
	}()
	require.Eventually(t, func() bool { return backend.commitCallCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err = svc.Commit(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Retreat(ctx, testCreds, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	_, err = svc.Advance(ctx, testCreds, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	snapshot, err := svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.True(t, snapshot.Wizard.Committing)

	close(release)
	result := <-first
	require.NoError(t, result.err)
	assert.Equal(t, 3, result.resp.Sessions)

	assert.Equal(t, 1, backend.commitCallCount())
	assert.Len(t, backend.committed, 3)
	assert.Equal(t, 1, hookCalls)
	_, err = svc.Get(ctx, testCreds, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

// interleavingStore runs afterGet once, right after the next Get returns its
// copy, to simulate a concurrent request landing between load and save.
type interleavingStore struct {
	*MemoryWizardStore
	afterGet func()
}

func (s *interleavingStore) Get(ctx context.Context, id string) (*models.Wizard, error) {
	wizard, err := s.MemoryWizardStore.Get(ctx, id)
	if fn := s.afterGet; fn != nil {
		s.afterGet = nil
		fn()
	}
	return wizard, err
}

func TestWizardServiceCommitLosesRevisionRace(t *testing.T) {
	backend := newBackendStub()
	memory := NewMemoryWizardStore(0)
	store := &interleavingStore{MemoryWizardStore: memory}
	svc := NewWizardService(backend, store, nil, nil, nil, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")
	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	store.afterGet = func() {
		rival, err := memory.Get(ctx, id)
		require.NoError(t, err)
		rival.Committing = true
		require.NoError(t, memory.Save(ctx, rival))
	}

	_, err = svc.Commit(ctx, testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStaleWizard))
	assert.Zero(t, backend.commitCallCount())
}

func TestWizardServiceCommitRequiresConfirmStep(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	id := configureWizard(t, svc, "c1")

	_, err := svc.Commit(context.Background(), testCreds, id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, backend.committed)
}

func TestBuildCommitPlanRejectsMissingSelection(t *testing.T) {
	w := &models.Wizard{Classes: []models.ClassPlan{{
		Classroom: models.Classroom{ID: "c1"},
		Sessions: []models.PlannedSession{
			greenSession("2025-01-06", "s1", "i1"),
			{CandidateSession: models.CandidateSession{Date: "2025-01-08"}},
		},
	}}}
	_, err := buildCommitPlan(w)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "c1-1")
}

func TestWizardServiceTenantIsolation(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	resp, err := svc.Open(ctx, testCreds)
	require.NoError(t, err)

	other := models.BackendCredentials{TenantID: "tenant-2"}
	_, err = svc.Get(ctx, other, resp.Wizard.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.True(t, appErrors.Is(svc.Close(ctx, other, resp.Wizard.ID), appErrors.ErrNotFound))

	_, err = svc.Open(ctx, models.BackendCredentials{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWizardServiceRejectsStaleUpdates(t *testing.T) {
	backend := newBackendStub()
	svc, store := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	stale, err := store.Get(ctx, id)
	require.NoError(t, err)
	_, err = svc.ToggleWeekday(ctx, testCreds, id, "c1", 5)
	require.NoError(t, err)

	stale.Step = models.WizardStepConfirm
	_, err = svc.persist(ctx, stale)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStaleWizard))

	resp, err := svc.Get(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfigure, resp.Wizard.Step)
	assert.Equal(t, []int{1, 3, 5}, resp.Wizard.Classes[0].Config.WeekdayMask)
}

func TestWizardServiceCloseDiscardsWizard(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")

	require.NoError(t, svc.Close(ctx, testCreds, id))
	_, err := svc.Get(ctx, testCreds, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWizardServiceRetreatToConfigureDropsSessions(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	id := configureWizard(t, svc, "c1")
	_, err := svc.Advance(ctx, testCreds, id)
	require.NoError(t, err)

	resp, err := svc.Retreat(ctx, testCreds, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepConfigure, resp.Wizard.Step)
	assert.Empty(t, resp.Wizard.Classes[0].Sessions)
	assert.Nil(t, resp.Gate)
	assert.Equal(t, []string{"s1"}, resp.Wizard.Classes[0].Config.SlotIDs)
}

func TestWizardServiceSelectClassPropagatesBackendErrors(t *testing.T) {
	backend := newBackendStub()
	svc, _ := newTestWizardService(backend, WizardServiceConfig{})
	ctx := context.Background()
	resp, err := svc.Open(ctx, testCreds)
	require.NoError(t, err)

	_, err = svc.SelectClass(ctx, testCreds, resp.Wizard.ID, dto.SelectClassRequest{ClassID: "missing"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SelectClass(ctx, testCreds, resp.Wizard.ID, dto.SelectClassRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
