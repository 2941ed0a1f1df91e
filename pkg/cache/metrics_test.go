package cache

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if CacheHitsTotal == nil {
		t.Error("CacheHitsTotal not registered")
	}

	if CacheMissesTotal == nil {
		t.Error("CacheMissesTotal not registered")
	}

	if CacheSetsTotal == nil {
		t.Error("CacheSetsTotal not registered")
	}

	if CacheDeletesTotal == nil {
		t.Error("CacheDeletesTotal not registered")
	}
}

// TestMetrics_Labels tests label values are accepted
func TestMetrics_Labels(t *testing.T) {
	CacheHitsTotal.WithLabelValues("order-snapshots").Inc()
	CacheMissesTotal.WithLabelValues("order-snapshots").Inc()
	CacheSetsTotal.WithLabelValues("order-snapshots", "true").Inc()
	CacheSetsTotal.WithLabelValues("order-snapshots", "false").Inc()
	CacheDeletesTotal.WithLabelValues("order-snapshots").Inc()
}
