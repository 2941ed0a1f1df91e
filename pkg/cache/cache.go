// Package cache provides short-lived caches for venue data such as order
// snapshots.
package cache

import "time"

// Cache is a TTL key/value cache. Implementations may drop writes; callers
// must treat a miss as "fetch from the source".
type Cache interface {
	// Get returns (value, true) on a hit.
	Get(key string) (interface{}, bool)

	// Set stores value for ttl. It returns false when the write was dropped.
	Set(key string, value interface{}, ttl time.Duration) bool

	Delete(key string)

	Clear()

	Close()
}
