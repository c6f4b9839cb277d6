package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// NewServer binds handler to the configured port with the configured timeouts.
func NewServer(cfg *config.Config, port string, handler http.Handler) *http.Server {
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
}

// Serve runs srv until ctx is cancelled, then drains in-flight requests.
func Serve(ctx context.Context, srv *http.Server, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logg.Info(ctx, "shutting down api server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
