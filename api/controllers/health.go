package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/movingops/jobreport-backend/api/responses"
	"github.com/movingops/jobreport-backend/pkg/config"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const (
	envHeader    = "X-JobReport-Env"
	readyTimeout = 3 * time.Second
)

type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each dependency; nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := []struct {
			name string
			p    Pinger
		}{
			{"database", dbP},
			{"redis", redisP},
		}
		status := map[string]string{}
		for _, c := range checks {
			if c.p == nil {
				continue
			}
			if err := c.p.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, c.name+" not ready").
					WithDetails(map[string]string{"dependency": c.name}))
				return
			}
			status[c.name] = "ok"
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
