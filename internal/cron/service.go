package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/metrics"
)

// ServiceParams configure the scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockProvider
	Metrics  *metrics.CronJobMetrics
	Clock    *bizclock.Clock
}

// Service runs each registered job once a day at its wall-clock time in the business timezone.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockProvider
	metrics  *metrics.CronJobMetrics
	clock    *bizclock.Clock
	after    func(time.Duration) <-chan time.Time
}

// NewService builds the scheduler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock provider required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("business clock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		clock:    params.Clock,
		after:    time.After,
	}, nil
}

// Run waits for each job's next run time until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(s.registry.Entries()) == 0 {
		s.logg.Warn(ctx, "scheduler started without jobs")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		now := s.clock.Now()
		at, due := s.nextRun(now)
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"next_run": at.Format(time.RFC3339),
			"jobs":     jobNames(due),
		}), "scheduler waiting")

		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduler context canceled")
			return ctx.Err()
		case <-s.after(at.Sub(now)):
			for _, entry := range due {
				if err := s.runLocked(ctx, entry.Job); err != nil {
					s.logg.Error(s.logg.WithField(ctx, "job", entry.Job.Name()), "scheduled run failed", err)
				}
			}
		}
	}
}

// RunJob runs a registered job immediately under its lock.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "unknown scheduled job").WithDetails(map[string]string{"job": name})
	}
	return s.runLocked(ctx, job)
}

// nextRun returns the earliest upcoming run time and every entry due at that instant.
func (s *Service) nextRun(now time.Time) (time.Time, []Entry) {
	var (
		earliest time.Time
		due      []Entry
	)
	for _, entry := range s.registry.Entries() {
		next := entry.At.Next(now)
		switch {
		case earliest.IsZero() || next.Before(earliest):
			earliest = next
			due = []Entry{entry}
		case next.Equal(earliest):
			due = append(due, entry)
		}
	}
	return earliest, due
}

func (s *Service) runLocked(ctx context.Context, job Job) error {
	lock, err := s.locks.For(job.Name())
	if err != nil {
		return fmt.Errorf("lock for %s: %w", job.Name(), err)
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	if !locked {
		s.metrics.IncSkipped(job.Name())
		s.logg.Info(jobCtx, "another scheduler instance is running this job; skipping")
		return nil
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()
	return s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds()), "job completed")
	return nil
}

func jobNames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Job.Name())
	}
	return names
}
