package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

const defaultLockTTL = 10 * time.Minute

// ErrLockLost is returned by Refresh once another worker holds the key.
var ErrLockLost = errors.New("cron lock lost")

// Lock serializes cron cycles across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	// Refresh extends a held lease so a long cycle does not outlive its TTL.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a lease on a single Redis key. The value is a per-acquire
// token, so only the holder can extend or drop it.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Refresh(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if !held {
		l.token = ""
		return ErrLockLost
	}
	ok, err := l.store.Expire(ctx, l.key, l.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
		return ErrLockLost
	}
	return nil
}

// Release drops the key if this lock still owns it. It runs even when ctx
// is already cancelled, so a shutdown does not strand the lease.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if held {
		if err := l.store.Del(ctx, l.key); err != nil {
			return fmt.Errorf("delete %s: %w", l.key, err)
		}
	}
	l.token = ""
	return nil
}

func (l *RedisLock) holds(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	value, err := l.store.Get(ctx, l.key)
	if redis.IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s owner: %w", l.key, err)
	}
	return value == l.token, nil
}
