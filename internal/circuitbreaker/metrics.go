package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// Enabled indicates whether new executions may start.
	Enabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_circuit_breaker_enabled",
		Help: "Whether the circuit breaker allows new executions (1=enabled, 0=disabled)",
	})

	// Balance tracks the last checked USDC balance.
	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_circuit_breaker_balance_usdc",
		Help: "Last checked USDC balance in the wallet",
	})

	// DisableThreshold tracks the balance below which executions are vetoed.
	DisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_circuit_breaker_disable_threshold_usdc",
		Help: "Current USDC balance threshold for disabling execution",
	})

	// EnableThreshold tracks the balance at which executions resume.
	EnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_circuit_breaker_enable_threshold_usdc",
		Help: "Current USDC balance threshold for re-enabling execution (with hysteresis)",
	})

	// AvgTradeSize tracks the rolling average execution size.
	AvgTradeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_circuit_breaker_avg_trade_size_usdc",
		Help: "Rolling average execution size used for threshold calculation",
	})

	// StateChangesTotal tracks enabled/disabled transitions.
	StateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_circuit_breaker_state_changes_total",
		Help: "Total number of times the circuit breaker changed state",
	})

	// BlockedTotal tracks vetoed executions by reason.
	BlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybridge_circuit_breaker_blocked_total",
		Help: "Total number of executions vetoed by the circuit breaker",
	}, []string{"reason"})

	// CheckDuration tracks the time taken to check balance.
	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polybridge_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to check wallet balance",
		Buckets: prometheus.DefBuckets,
	})
)
