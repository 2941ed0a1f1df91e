package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NotificationsSentTotal tracks notifications delivered per sink.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"sink", "type"},
	)

	// HubClients tracks connected websocket clients.
	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polybridge_notify_hub_clients",
			Help: "Number of connected notification websocket clients",
		},
	)

	// HubDroppedTotal tracks messages dropped because a client queue was full.
	HubDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polybridge_notify_hub_dropped_total",
			Help: "Total number of notifications dropped for slow clients",
		},
	)
)
