package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/movingops/jobreport-backend/pkg/instance"
)

const defaultLockTTL = time.Hour

// Lock is one job's cross-instance mutex. Acquire reports false when another
// scheduler already holds it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockProvider hands out the lock guarding a named job.
type LockProvider interface {
	For(job string) (Lock, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocks stores one expiring key per job. The value names the holder so a
// run that outlives its TTL never deletes a successor's key.
type RedisLocks struct {
	store lockStore
	keyFn func(job string) string
	ttl   time.Duration
}

// NewRedisLocks returns a provider of per-job Redis locks; ttl <= 0 means one hour.
func NewRedisLocks(store lockStore, keyFn func(job string) string, ttl time.Duration) (*RedisLocks, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if keyFn == nil {
		return nil, errors.New("lock key function required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocks{store: store, keyFn: keyFn, ttl: ttl}, nil
}

func (p *RedisLocks) For(job string) (Lock, error) {
	key := p.keyFn(job)
	if key == "" {
		return nil, fmt.Errorf("empty lock key for job %q", job)
	}
	return &lease{locks: p, key: key}, nil
}

type lease struct {
	locks  *RedisLocks
	key    string
	holder string
}

func (l *lease) Acquire(ctx context.Context) (bool, error) {
	holder := instance.ID() + ":" + uuid.NewString()
	won, err := l.locks.store.SetNX(ctx, l.key, holder, l.locks.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", l.key, err)
	}
	if won {
		l.holder = holder
	}
	return won, nil
}

func (l *lease) Release(ctx context.Context) error {
	if l.holder == "" {
		return nil
	}
	holder := l.holder
	l.holder = ""

	current, err := l.locks.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read %s: %w", l.key, err)
	case current != holder:
		// expired and claimed by another instance
		return nil
	}
	if err := l.locks.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
