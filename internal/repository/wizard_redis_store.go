package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

const wizardKeyPrefix = "schedule_wizard:"

// WizardRedisStore keeps wizard state in Redis so several API replicas can
// serve the same wizard. Saves are optimistic on the wizard revision.
type WizardRedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWizardRedisStore constructs the store.
func NewWizardRedisStore(client *redis.Client, ttl time.Duration) *WizardRedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &WizardRedisStore{client: client, ttl: ttl}
}

// Create stores a freshly opened wizard.
func (s *WizardRedisStore) Create(ctx context.Context, wizard *models.Wizard) error {
	payload, err := json.Marshal(wizard)
	if err != nil {
		return fmt.Errorf("marshal wizard %s: %w", wizard.ID, err)
	}
	ok, err := s.client.SetNX(ctx, wizardKey(wizard.ID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", wizard.ID, err)
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "wizard already exists")
	}
	return nil
}

// Get loads a wizard.
func (s *WizardRedisStore) Get(ctx context.Context, id string) (*models.Wizard, error) {
	raw, err := s.client.Get(ctx, wizardKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, wizardNotFound()
		}
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	var wizard models.Wizard
	if err := json.Unmarshal(raw, &wizard); err != nil {
		return nil, fmt.Errorf("unmarshal wizard %s: %w", id, err)
	}
	return &wizard, nil
}

// Save writes the wizard when the stored revision still matches and bumps it.
func (s *WizardRedisStore) Save(ctx context.Context, wizard *models.Wizard) error {
	key := wizardKey(wizard.ID)
	next := *wizard
	next.Revision = wizard.Revision + 1

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return wizardNotFound()
			}
			return fmt.Errorf("redis get %s: %w", wizard.ID, err)
		}
		var current struct {
			Revision int64 `json:"revision"`
		}
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal wizard %s: %w", wizard.ID, err)
		}
		if current.Revision != wizard.Revision {
			return appErrors.ErrStaleWizard
		}
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal wizard %s: %w", wizard.ID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return appErrors.ErrStaleWizard
		}
		return err
	}
	wizard.Revision = next.Revision
	return nil
}

// Delete removes a wizard. Missing wizards are not an error.
func (s *WizardRedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, wizardKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	return nil
}

func wizardKey(id string) string {
	return wizardKeyPrefix + id
}

func wizardNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "wizard not found or expired")
}
