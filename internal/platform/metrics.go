package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SnapshotCacheHitsTotal tracks order lookups served from the cache.
	SnapshotCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_platform_snapshot_cache_hits_total",
			Help: "Total number of order snapshots served from cache",
		},
		[]string{"platform"},
	)

	// SnapshotCacheMissesTotal tracks order lookups that hit the venue.
	SnapshotCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_platform_snapshot_cache_misses_total",
			Help: "Total number of order snapshots fetched from the venue",
		},
		[]string{"platform"},
	)

	// RequestDurationSeconds tracks venue API latency.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polybridge_platform_request_duration_seconds",
			Help:    "Duration of venue API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform", "endpoint"},
	)

	// RequestErrorsTotal tracks failed venue API requests.
	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_platform_request_errors_total",
			Help: "Total number of failed venue API requests",
		},
		[]string{"platform", "endpoint"},
	)
)
