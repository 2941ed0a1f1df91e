package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheSetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_cache_sets_total",
			Help: "Total number of cache writes, by whether ristretto admitted them",
		},
		[]string{"cache", "admitted"},
	)

	CacheDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polybridge_cache_deletes_total",
			Help: "Total number of cache deletes",
		},
		[]string{"cache"},
	)
)
