package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobRunsTotal, jobDuration, sweepReconciledTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Scheduled job runs by job and status.",
		},
		[]string{"job", "status"}, // status: 'ok', 'error', 'skipped'
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"job"},
	)

	sweepReconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_sweep_reconciled_total",
			Help: "Pending transactions finalized by the reconciliation sweep.",
		},
	)
)

func ObserveJobRun(job, status string, took time.Duration) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
	jobDuration.WithLabelValues(norm(job)).Observe(took.Seconds())
}

func AddSweepReconciled(n int) {
	if n > 0 {
		sweepReconciledTotal.Add(float64(n))
	}
}
