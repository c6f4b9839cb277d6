package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/movingops/jobreport-backend/api/controllers"
	"github.com/movingops/jobreport-backend/api/middleware"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/metrics"
	pkgredis "github.com/movingops/jobreport-backend/pkg/redis"
)

// Limiter is the Redis surface the router needs for idempotency and rate limiting.
type Limiter interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	middleware.WindowLimiter
}

// Deps carries everything the router mounts. Nil services answer with an internal error.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Clock    *bizclock.Clock
	DB       controllers.Pinger
	Redis    Limiter
	Gatherer prometheus.Gatherer

	HTTPMetrics   *metrics.HTTPMetrics
	LedgerMetrics *metrics.LedgerMetrics

	Reports    controllers.ReportsService
	Reconciler controllers.Reconciler
	Notifier   controllers.Notifier
	Summary    controllers.SummaryBuilder
	Ledger     controllers.LedgerReader
	Guard      controllers.DateChecker
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
		middleware.AdminToken(cfg.HTTP.AdminToken),
	)

	var redisPinger controllers.Pinger
	var limiter middleware.WindowLimiter
	var idem pkgredis.IdempotencyStore
	if d.Redis != nil {
		redisPinger, limiter, idem = d.Redis, d.Redis, d.Redis
	}

	submitPolicy := middleware.NewRateLimitPolicy("submit", cfg.RateLimit.SubmitWindow, cfg.RateLimit.SubmitLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, redisPinger))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Get("/form", controllers.ReportForm(d.Reports, logg))
		r.With(
			middleware.RateLimit(submitPolicy, limiter, logg),
			middleware.Idempotency(idem, logg),
		).Post("/submit", controllers.SubmitReport(d.Reports, d.LedgerMetrics, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(idem, logg))

		r.Post("/reconcile", controllers.AdminReconcile(d.Reconciler, d.Clock, logg))
		r.Post("/notify", controllers.AdminNotify(d.Notifier, logg))
		r.Post("/summary", controllers.AdminSummary(d.Summary, logg))
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", controllers.AdminLedgerMonths(d.Ledger, logg))
			r.Get("/exists", controllers.AdminDateExists(d.Guard, logg))
			r.Get("/{month}/export", controllers.AdminLedgerExport(d.Ledger, logg))
		})
	})

	return r
}
