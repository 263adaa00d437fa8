package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/menusam/partner-billing/pkg/instance"
)

// billingLockName guards a whole cron cycle so two replicas never close or roll over the same periods.
const billingLockName = "billing-cron"

// The lock outlives a daily cycle so a crashed holder blocks at most one extra tick.
const defaultLockTTL = 25 * time.Hour

// Lock coordinates exclusive cron cycles across cron-worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	ReleaseIfOwner(ctx context.Context, key, token string) (bool, error)
}

type keyedLockStore interface {
	lockStore
	LockKey(name string) string
}

// RedisLock is a SETNX lock whose value names the holding replica, e.g. "worker.1/5f0c...".
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

// NewBillingCronLock builds the lock shared by every cron-worker replica.
func NewBillingCronLock(store keyedLockStore, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	return NewRedisLock(store, store.LockKey(billingLockName), ttl)
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
	token := instance.GetID() + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Holder returns the token of whoever holds the lock, or "" when it is free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	token, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

// Release is a no-op unless this instance still holds the lock; an expired holder never deletes
// the key a newer holder set.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}
