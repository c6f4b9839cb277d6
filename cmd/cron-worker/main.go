package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/movingops/jobreport-backend/internal/bootstrap"
	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/instance"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

func main() {
	runOnce := flag.String("run", "", "run a single scheduled job (reconcile, reminder, notification-log-cleanup) and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	app, err := bootstrap.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap services", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	if *runOnce != "" {
		jobCtx := logg.WithField(ctx, "job", *runOnce)
		if err := app.Scheduler.RunJob(jobCtx, *runOnce); err != nil {
			logg.Error(jobCtx, "scheduled job failed", err)
			os.Exit(1)
		}
		logg.Info(jobCtx, "scheduled job finished")
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := app.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
