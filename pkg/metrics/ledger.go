package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts reconciliation and submission outcomes.
type LedgerMetrics struct {
	reconciled  *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "reconciled_jobs_total",
		Help:      "Jobs seen by reconciliation passes, by pass and outcome.",
	}, []string{"pass", "outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Report submissions by mode and result code.",
	}, []string{"mode", "result"})
	reg.MustRegister(reconciled, submissions)
	return &LedgerMetrics{reconciled: reconciled, submissions: submissions}
}

// AddReconciled adds n jobs to the pass/outcome counter.
func (l *LedgerMetrics) AddReconciled(pass, outcome string, n int) {
	if l == nil || l.reconciled == nil || n <= 0 {
		return
	}
	l.reconciled.WithLabelValues(jobLabel(pass), outcome).Add(float64(n))
}

// IncSubmission counts one submission attempt.
func (l *LedgerMetrics) IncSubmission(mode, result string) {
	if l == nil || l.submissions == nil {
		return
	}
	l.submissions.WithLabelValues(jobLabel(mode), jobLabel(result)).Inc()
}
