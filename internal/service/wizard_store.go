package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

// WizardStore persists wizard state between requests. Save must fail with
// ErrStaleWizard when the stored revision differs from the caller's copy and
// bump the revision on success.
type WizardStore interface {
	Create(ctx context.Context, wizard *models.Wizard) error
	Get(ctx context.Context, id string) (*models.Wizard, error)
	Save(ctx context.Context, wizard *models.Wizard) error
	Delete(ctx context.Context, id string) error
}

type storedWizard struct {
	payload   []byte
	revision  int64
	expiresAt time.Time
}

// MemoryWizardStore keeps wizards in process memory. Entries are stored
// serialised so callers never share mutable state with the store.
type MemoryWizardStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]storedWizard
}

// NewMemoryWizardStore constructs an in-memory store with sliding expiry.
func NewMemoryWizardStore(ttl time.Duration) *MemoryWizardStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &MemoryWizardStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]storedWizard),
	}
}

// Create stores a new wizard.
func (s *MemoryWizardStore) Create(_ context.Context, wizard *models.Wizard) error {
	payload, err := json.Marshal(wizard)
	if err != nil {
		return fmt.Errorf("marshal wizard %s: %w", wizard.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[wizard.ID]; ok && s.now().Before(item.expiresAt) {
		return appErrors.Clone(appErrors.ErrConflict, "wizard already exists")
	}
	s.items[wizard.ID] = storedWizard{payload: payload, revision: wizard.Revision, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Get returns a private copy of the wizard.
func (s *MemoryWizardStore) Get(_ context.Context, id string) (*models.Wizard, error) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "wizard not found or expired")
	}
	if !s.now().Before(item.expiresAt) {
		s.evict(id, item.expiresAt)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "wizard not found or expired")
	}
	var wizard models.Wizard
	if err := json.Unmarshal(item.payload, &wizard); err != nil {
		return nil, fmt.Errorf("unmarshal wizard %s: %w", id, err)
	}
	return &wizard, nil
}

// Save compares revisions, stores the wizard and refreshes its expiry.
func (s *MemoryWizardStore) Save(_ context.Context, wizard *models.Wizard) error {
	next := *wizard
	next.Revision = wizard.Revision + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal wizard %s: %w", wizard.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[wizard.ID]
	if !ok || !s.now().Before(item.expiresAt) {
		delete(s.items, wizard.ID)
		return appErrors.Clone(appErrors.ErrNotFound, "wizard not found or expired")
	}
	if item.revision != wizard.Revision {
		return appErrors.ErrStaleWizard
	}
	s.items[wizard.ID] = storedWizard{payload: payload, revision: next.Revision, expiresAt: s.now().Add(s.ttl)}
	wizard.Revision = next.Revision
	return nil
}

// Delete drops a wizard.
func (s *MemoryWizardStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Sweep removes expired wizards and reports how many were dropped.
func (s *MemoryWizardStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryWizardStore) evict(id string, expiresAt time.Time) {
	s.mu.Lock()
	if item, ok := s.items[id]; ok && item.expiresAt.Equal(expiresAt) {
		delete(s.items, id)
	}
	s.mu.Unlock()
}
