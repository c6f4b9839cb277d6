package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/movingops/jobreport-backend/internal/cron"
	"github.com/movingops/jobreport-backend/internal/guard"
	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/internal/ledger/memory"
	"github.com/movingops/jobreport-backend/internal/notify"
	"github.com/movingops/jobreport-backend/internal/reconcile"
	"github.com/movingops/jobreport-backend/internal/reports"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/calendar"
	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/db"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/mailer"
	"github.com/movingops/jobreport-backend/pkg/metrics"
	"github.com/movingops/jobreport-backend/pkg/migrate"
	"github.com/movingops/jobreport-backend/pkg/redis"
	"github.com/movingops/jobreport-backend/pkg/retry"
	"github.com/movingops/jobreport-backend/pkg/sheets"
)

// App holds every long-lived dependency a process entrypoint needs.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Clock  *bizclock.Clock
	DB     *db.Client
	Redis  *redis.Client

	Registry      *prometheus.Registry
	HTTPMetrics   *metrics.HTTPMetrics
	LedgerMetrics *metrics.LedgerMetrics
	CronMetrics   *metrics.CronJobMetrics

	Ledger     *ledger.Store
	Guard      *guard.Guard
	Jobs       *jobs.Adapter
	Reports    *reports.Service
	Reconciler *reconcile.Driver
	Notifier   *notify.Service
	Scheduler  *cron.Service
}

// New connects to every backing service and assembles the domain services.
// On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (app *App, err error) {
	loc, err := cfg.Business.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logg, Clock: bizclock.New(loc, nil)}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	if a.DB, err = db.New(ctx, cfg, logg); err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err = migrate.MaybeRun(ctx, cfg, logg, a.DB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if a.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.HTTPMetrics = metrics.NewHTTPMetrics(a.Registry)
	a.LedgerMetrics = metrics.NewLedgerMetrics(a.Registry)
	a.CronMetrics = metrics.NewCronJobMetrics(a.Registry)

	if err = a.buildDomain(ctx); err != nil {
		return nil, err
	}
	if err = a.buildScheduler(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildDomain(ctx context.Context) error {
	cfg, logg := a.Config, a.Logger

	backend, err := ledgerBackend(ctx, cfg, logg)
	if err != nil {
		return err
	}
	var opts []ledger.StoreOption
	if cfg.FeatureFlags.RowIndex {
		opts = append(opts, ledger.WithRowIndex(ledger.NewRedisRowIndex(a.Redis)))
	}
	if a.Ledger, err = ledger.NewStore(backend, a.Clock, logg, opts...); err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	if a.Guard, err = guard.New(a.Ledger); err != nil {
		return fmt.Errorf("duplicate guard: %w", err)
	}

	events, err := calendar.NewClient(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("calendar client: %w", err)
	}
	classifier := jobs.NewClassifier(cfg.Business.ColorSources())
	if a.Jobs, err = jobs.NewAdapter(events, a.Clock, classifier, retry.FromConfig(cfg.Retry), logg); err != nil {
		return fmt.Errorf("job adapter: %w", err)
	}

	if a.Reports, err = reports.NewService(reports.ServiceParams{
		Ledger: a.Ledger,
		Guard:  a.Guard,
		Jobs:   a.Jobs,
		Clock:  a.Clock,
		Logger: logg,
	}); err != nil {
		return fmt.Errorf("reports service: %w", err)
	}

	if a.Reconciler, err = reconcile.NewDriver(a.Jobs, a.Ledger, a.Clock, cfg.Business.BaseURL, logg,
		reconcile.WithMetrics(a.LedgerMetrics),
	); err != nil {
		return fmt.Errorf("reconcile driver: %w", err)
	}

	sender, err := mailer.New(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	if a.Notifier, err = notify.NewService(notify.ServiceParams{
		Jobs:       a.Jobs,
		Repository: notify.NewRepository(a.DB.DB()),
		Sender:     sender,
		Clock:      a.Clock,
		Logger:     logg,
		BaseURL:    cfg.Business.BaseURL,
		From:       cfg.Mail.From,
		To:         cfg.Mail.Recipient(),
	}); err != nil {
		return fmt.Errorf("notify service: %w", err)
	}
	return nil
}

func ledgerBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (ledger.Backend, error) {
	if cfg.FeatureFlags.UseMemoryLedger() {
		logg.Warn(ctx, "using in-memory ledger backend; data is lost on restart")
		return memory.New(), nil
	}
	client, err := sheets.NewClient(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return client, nil
}

func (a *App) buildScheduler() error {
	cfg := a.Config
	entries := make([]cron.Entry, 0, 3)

	reconcileJob, err := reconcile.NewCronJob(a.Reconciler)
	if err != nil {
		return err
	}
	reminderJob, err := notify.NewCronJob(a.Notifier)
	if err != nil {
		return err
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     a.Logger,
		DB:         a.DB,
		Repository: notify.NewRepository(a.DB.DB()),
		Clock:      a.Clock,
		Retention:  cfg.Cron.NotificationRetentionDays,
	})
	if err != nil {
		return err
	}

	for _, item := range []struct {
		job cron.Job
		at  string
	}{
		{reconcileJob, cfg.Cron.ReconcileAt},
		{reminderJob, cfg.Cron.ReminderAt},
		{cleanupJob, cfg.Cron.CleanupAt},
	} {
		at, err := cron.ParseSchedule(item.at)
		if err != nil {
			return fmt.Errorf("schedule for %s: %w", item.job.Name(), err)
		}
		entries = append(entries, cron.Entry{Job: item.job, At: at})
	}

	locks, err := cron.NewRedisLocks(a.Redis, func(job string) string {
		return a.Redis.LockKey(cfg.App.Env, job)
	}, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	a.Scheduler, err = cron.NewService(cron.ServiceParams{
		Logger:   a.Logger,
		Registry: cron.NewRegistry(entries...),
		Locks:    locks,
		Metrics:  a.CronMetrics,
		Clock:    a.Clock,
	})
	return err
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var err error
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}
