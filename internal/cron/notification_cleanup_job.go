package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

// NotificationCleanupJobName is the scheduler name of the reminder log cleanup.
const NotificationCleanupJobName = "notification-log-cleanup"

const defaultRetentionDays = 90

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationLogPruner interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams wires the reminder log retention job.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationLogPruner
	Clock      *bizclock.Clock
	// Retention is in business days; zero or less uses 90.
	Retention int
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      notificationLogPruner
	clock     *bizclock.Clock
	retention int
}

// NewNotificationCleanupJob prunes reminder log rows sent before the start of the
// business day Retention days ago. The dedupe check only ever reads today's row,
// so older rows are history only.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("notification log repository required")
	case params.Clock == nil:
		return nil, errors.New("business clock required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		clock:     params.Clock,
		retention: retention,
	}, nil
}

func (j *notificationCleanupJob) Name() string { return NotificationCleanupJobName }

func (j *notificationCleanupJob) cutoff() time.Time {
	return j.clock.StartOfDay(j.clock.Now()).AddDate(0, 0, -j.retention)
}

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.repo.DeleteOlderThan(ctx, tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("prune notification log before %s: %w", bizclock.FormatDate(cutoff), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         bizclock.FormatDate(cutoff),
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "notification log pruned")
	return nil
}
