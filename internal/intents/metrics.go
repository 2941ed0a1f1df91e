package intents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// IntentsCreatedTotal tracks accepted intents by platform.
	IntentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_intents_created_total",
			Help: "Total number of trade intents created",
		},
		[]string{"platform"},
	)

	// IntentsRejectedTotal tracks intents that failed validation.
	IntentsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_intents_rejected_total",
		Help: "Total number of trade intents rejected by validation",
	})

	// IntentsCancelledTotal tracks successful cancellations.
	IntentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybridge_intents_cancelled_total",
		Help: "Total number of trade intents cancelled before execution",
	})
)
