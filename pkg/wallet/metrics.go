package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NativeBalance tracks the native gas token balance.
	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_wallet_native_balance",
		Help: "Current native token balance in wallet (whole units)",
	})

	// USDCBalance tracks the USDC balance available for bridging.
	USDCBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_wallet_usdc_balance",
		Help: "Current USDC balance in wallet (USD)",
	})

	// USDCAllowance tracks the USDC allowance granted to the configured spender.
	USDCAllowance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_wallet_usdc_allowance",
		Help: "USDC allowance granted to the configured spender (USD)",
	})

	// UpdateErrorsTotal tracks failed balance reads.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_wallet_update_errors_total",
		Help: "Total number of failed wallet balance reads",
	})

	// UpdateDuration tracks the time taken to read balances.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polybridge_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet balances (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful read.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybridge_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet balance read",
	})
)
