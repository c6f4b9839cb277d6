package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRedis struct {
	data map[string]string
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRedisLocksArePerJob(t *testing.T) {
	store := &memRedis{data: map[string]string{}}
	locks, err := NewRedisLocks(store, func(job string) string { return "jr:lock:test:" + job }, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	reconcile, err := locks.For("reconcile")
	require.NoError(t, err)
	reminder, err := locks.For("reminder")
	require.NoError(t, err)
	second, err := locks.For("reconcile")
	require.NoError(t, err)

	ok, err := reconcile.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reminder.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "different jobs do not contend")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release leaves the lock in place
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.data, "jr:lock:test:reconcile")

	require.NoError(t, reconcile.Release(ctx))
	assert.NotContains(t, store.data, "jr:lock:test:reconcile")
}

func TestRedisLockReleaseKeepsSuccessorClaim(t *testing.T) {
	store := &memRedis{data: map[string]string{}}
	locks, err := NewRedisLocks(store, func(job string) string { return "jr:lock:test:" + job }, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, locks.ttl)
	ctx := context.Background()

	lock, err := locks.For("reconcile")
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the key expired and another instance claimed it
	store.data["jr:lock:test:reconcile"] = "other-host:abc"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other-host:abc", store.data["jr:lock:test:reconcile"])
}

func TestRedisLocksRejectEmptyKey(t *testing.T) {
	locks, err := NewRedisLocks(&memRedis{data: map[string]string{}}, func(string) string { return "" }, time.Minute)
	require.NoError(t, err)
	_, err = locks.For("reconcile")
	assert.Error(t, err)
}
