package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

func TestMemoryWizardStoreCompareAndSwap(t *testing.T) {
	store := NewMemoryWizardStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Wizard{ID: "w1", TenantID: "t"}))

	first, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "w1")
	require.NoError(t, err)

	first.Step = models.WizardStepPreview
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(1), first.Revision)

	second.Step = models.WizardStepConfirm
	err = store.Save(ctx, second)
	assert.True(t, appErrors.Is(err, appErrors.ErrStaleWizard))

	current, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.WizardStepPreview, current.Step)
	assert.Equal(t, int64(1), current.Revision)
}

func TestMemoryWizardStoreReturnsCopies(t *testing.T) {
	store := NewMemoryWizardStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Wizard{ID: "w1", Classes: []models.ClassPlan{{Classroom: models.Classroom{ID: "c1"}}}}))

	loaded, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	loaded.Classes[0].Classroom.ID = "mutated"

	again, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "c1", again.Classes[0].Classroom.ID)
}

func TestMemoryWizardStoreExpiry(t *testing.T) {
	store := NewMemoryWizardStore(time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Wizard{ID: "w1"}))
	require.NoError(t, store.Create(ctx, &models.Wizard{ID: "w2"}))

	now = now.Add(30 * time.Second)
	w1, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, w1))

	now = now.Add(45 * time.Second)
	_, err = store.Get(ctx, "w1")
	assert.NoError(t, err, "save refreshes the expiry")
	_, err = store.Get(ctx, "w2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, store.Sweep())
}

func TestMemoryWizardStoreCreateConflictAndDelete(t *testing.T) {
	store := NewMemoryWizardStore(0)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Wizard{ID: "w1"}))
	assert.True(t, appErrors.Is(store.Create(ctx, &models.Wizard{ID: "w1"}), appErrors.ErrConflict))

	require.NoError(t, store.Delete(ctx, "w1"))
	assert.True(t, appErrors.Is(store.Save(ctx, &models.Wizard{ID: "w1"}), appErrors.ErrNotFound))
}
