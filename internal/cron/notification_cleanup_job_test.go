package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

func TestNotificationCleanupJobDeletesExpiredEntries(t *testing.T) {
	repo := &fakeLogRepo{deletedRows: 42}
	job := newNotificationCleanupJob(t, repo, 0)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, NotificationCleanupJobName, job.Name())
	// 2026-03-31 12:00 UTC is 05:00 on Mar 31 in Los Angeles; 90 days back from midnight.
	want := time.Date(2025, 12, 31, 0, 0, 0, 0, job.clock.Location())
	assert.True(t, want.Equal(repo.lastCutoff), "cutoff %s", repo.lastCutoff)
	assert.Equal(t, 1, repo.called)
}

func TestNotificationCleanupJobCustomRetention(t *testing.T) {
	repo := &fakeLogRepo{}
	job := newNotificationCleanupJob(t, repo, 7)

	require.NoError(t, job.Run(context.Background()))
	want := time.Date(2026, 3, 24, 0, 0, 0, 0, job.clock.Location())
	assert.True(t, want.Equal(repo.lastCutoff), "cutoff %s", repo.lastCutoff)
}

func TestNotificationCleanupJobRequiresClock(t *testing.T) {
	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         fakeTxRunner{},
		Repository: &fakeLogRepo{},
	})
	assert.Error(t, err)
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	job := newNotificationCleanupJob(t, &fakeLogRepo{err: errors.New("boom")}, 0)
	assert.Error(t, job.Run(context.Background()))
}

func newNotificationCleanupJob(t *testing.T, repo *fakeLogRepo, retention int) *notificationCleanupJob {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         fakeTxRunner{},
		Repository: repo,
		Clock:      bizclock.New(loc, func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }),
		Retention:  retention,
	})
	require.NoError(t, err)
	job, ok := jobIface.(*notificationCleanupJob)
	require.True(t, ok, "unexpected job type %T", jobIface)
	return job
}

type fakeLogRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakeLogRepo) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
