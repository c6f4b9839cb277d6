package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobreport"

// Run outcomes recorded on jobreport_cron_runs_total.
const (
	RunOK      = "ok"
	RunError   = "error"
	RunSkipped = "skipped"
)

// CronJobMetrics records scheduled job runs. A nil value records nothing.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics registers the scheduler collectors on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "runs_total",
			Help:      "Scheduled job runs by outcome.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "run_duration_seconds",
			Help:      "Wall time of scheduled job runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one finished run; err decides the outcome label.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	job = jobLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, RunError).Inc()
		return
	}
	m.runs.WithLabelValues(job, RunOK).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// IncSkipped counts a run that found the job lock held elsewhere.
func (m *CronJobMetrics) IncSkipped(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(jobLabel(job), RunSkipped).Inc()
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
