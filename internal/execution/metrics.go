package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PhaseDurationSeconds tracks how long each phase action takes.
	PhaseDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polybridge_execution_phase_duration_seconds",
			Help:    "Duration of execution phase actions",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"phase"},
	)

	// PhaseFailuresTotal tracks failed phase actions.
	PhaseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_execution_phase_failures_total",
			Help: "Total number of failed phase actions",
		},
		[]string{"phase"},
	)

	// FlowAttemptsTotal tracks StartExecution attempts made by the full flow.
	FlowAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_execution_flow_attempts_total",
		Help: "Total number of full-flow execution attempts",
	})

	// FlowsCompletedTotal tracks successful full flows.
	FlowsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_execution_flows_completed_total",
		Help: "Total number of full flows that completed",
	})

	// FlowsFailedTotal tracks full flows that exhausted their retries or were
	// rejected, by reason.
	FlowsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_execution_flows_failed_total",
			Help: "Total number of full flows that failed",
		},
		[]string{"reason"},
	)

	// DryRunsTotal tracks estimator-only upstream executions.
	DryRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_execution_dry_runs_total",
		Help: "Total number of dry-run upstream executions",
	})

	// ExecutionsBlockedTotal tracks executions vetoed by the gate.
	ExecutionsBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_execution_blocked_total",
		Help: "Total number of executions blocked by the balance gate",
	})

	// ActiveRuns tracks runs currently walking phases.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_execution_active_runs",
		Help: "Number of execution runs in progress",
	})

	// ListenerPanicsTotal tracks recovered listener panics.
	ListenerPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_execution_listener_panics_total",
			Help: "Total number of recovered event listener panics",
		},
		[]string{"kind"},
	)
)
