// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Total number of batch recalculation runs by terminal status",
		},
		[]string{"status"},
	)

	BatchPivotsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_pivots_processed_total",
			Help: "Total number of pivots processed across batch runs",
		},
	)

	BatchPivotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_pivot_failures_total",
			Help: "Total number of per-pivot failures across batch runs",
		},
	)

	MatchScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_overall_score",
			Help:    "Distribution of overall match scores",
			Buckets: prometheus.LinearBuckets(0, 10, 12),
		},
	)

	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "match_pivot_duration_seconds",
			Help: "Duration of matching one pivot in seconds",
		},
		[]string{"pivot_kind"},
	)
)
