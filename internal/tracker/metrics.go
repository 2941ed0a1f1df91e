package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveSubscriptions tracks currently polling subscriptions.
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polybridge_tracker_active_subscriptions",
			Help: "Number of active order tracking subscriptions",
		},
	)

	// PollsTotal tracks poll outcomes.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_polls_total",
			Help: "Total number of order polls by result",
		},
		[]string{"platform", "result"},
	)

	// TransitionsTotal tracks detected status transitions by new status.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_transitions_total",
			Help: "Total number of order status transitions detected",
		},
		[]string{"platform", "status"},
	)

	// CapacityRejectionsTotal tracks subscriptions refused at the cap.
	CapacityRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_capacity_rejections_total",
			Help: "Total number of subscriptions rejected because the tracker was full",
		},
	)

	// SubscriptionsStoppedTotal tracks stopped subscriptions by reason.
	SubscriptionsStoppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_subscriptions_stopped_total",
			Help: "Total number of stopped subscriptions",
		},
		[]string{"reason"},
	)

	// SideEffectFailuresTotal tracks swallowed status-log and notifier errors.
	SideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_side_effect_failures_total",
			Help: "Total number of failed status-log or notification side effects",
		},
		[]string{"sink"},
	)

	// ListenerPanicsTotal tracks recovered subscription listener panics.
	ListenerPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_tracker_listener_panics_total",
			Help: "Total number of recovered subscription listener panics",
		},
		[]string{"kind"},
	)
)
