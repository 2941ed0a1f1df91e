package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TransactionsSentTotal tracks submitted transactions.
	TransactionsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_chain_transactions_sent_total",
			Help: "Total number of transactions submitted",
		},
		[]string{"chain", "method"},
	)

	// TransactionsRevertedTotal tracks mined transactions with a failed status.
	TransactionsRevertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_chain_transactions_reverted_total",
			Help: "Total number of transactions that reverted",
		},
		[]string{"chain", "method"},
	)

	// SimulationFailuresTotal tracks eth_call simulations that failed.
	SimulationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_chain_simulation_failures_total",
			Help: "Total number of failed transaction simulations",
		},
		[]string{"chain", "method"},
	)

	// ConfirmationSeconds tracks time from submission to receipt.
	ConfirmationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polybridge_chain_confirmation_seconds",
			Help:    "Time from submission until the transaction receipt is available",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"chain"},
	)

	// AttestationWaitSeconds tracks time spent polling for CCTP attestations.
	AttestationWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polybridge_chain_attestation_wait_seconds",
		Help:    "Time spent waiting for a bridge attestation",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 900, 1200, 1800},
	})
)
