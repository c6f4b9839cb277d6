package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/movingops/jobreport-backend/api"
	"github.com/movingops/jobreport-backend/api/routes"
	"github.com/movingops/jobreport-backend/internal/bootstrap"
	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/instance"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.ID(),
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

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Clock:         app.Clock,
		DB:            app.DB,
		Redis:         app.Redis,
		Gatherer:      app.Registry,
		HTTPMetrics:   app.HTTPMetrics,
		LedgerMetrics: app.LedgerMetrics,
		Reports:       app.Reports,
		Reconciler:    app.Reconciler,
		Notifier:      app.Notifier,
		Summary:       app.Ledger.Aggregator(),
		Ledger:        app.Ledger,
		Guard:         app.Guard,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, api.NewServer(cfg, os.Getenv("PORT"), handler), logg)
	})
	if cfg.Cron.Embedded {
		g.Go(func() error {
			err := app.Scheduler.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shut down gracefully")
}
