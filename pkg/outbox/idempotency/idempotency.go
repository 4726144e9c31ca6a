package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

// Manager remembers processed keys per consumer using Redis SETNX with a TTL.
// Keys follow the `rp:idempotency:processed:<consumer>:<key>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that marks keys as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed returns true if key was already processed by
// consumer, and otherwise claims it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, key string) (bool, error) {
	full, err := m.processedKey(consumer, key)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, full, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete releases a claim, e.g. when the guarded work failed.
func (m *Manager) Delete(ctx context.Context, consumer, key string) error {
	full, err := m.processedKey(consumer, key)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, full)
}

func (m *Manager) processedKey(consumer, key string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("key is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("processed:%s", consumer), key), nil
}
