package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloop_evaluations_total",
		Help: "Story evaluations by governance status.",
	}, []string{"governance"})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyloop_evaluation_duration_seconds",
		Help:    "Time spent loading inputs and refreshing the pipeline for one story.",
		Buckets: prometheus.DefBuckets,
	})

	readyItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyloop_backlog_ready_items",
		Help:    "Ready backlog items per evaluation.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8},
	})

	runsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloop_runs_created_total",
		Help: "Runs created by plan source.",
	}, []string{"source"})

	runsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloop_runs_closed_total",
		Help: "Runs closed by closer.",
	}, []string{"closed_by"})

	executionsBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloop_executions_blocked_total",
		Help: "Executions that created nothing because a gate held.",
	}, []string{"reason"})

	collaboratorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloop_collaborator_errors_total",
		Help: "Failed calls to external collaborators.",
	}, []string{"collaborator"})

	sweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyloop_sweeper_runs_total",
		Help: "Completed stale-run sweeps.",
	})

	sweeperLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyloop_sweeper_last_run_timestamp_seconds",
		Help: "Unix time of the last completed sweep.",
	})
)
