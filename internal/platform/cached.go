package platform

import (
	"context"
	"time"

	"github.com/mselser95/polybridge/pkg/cache"
	"github.com/mselser95/polybridge/pkg/types"
)

// CachedSource wraps an OrderSource with a short-TTL snapshot cache so
// several subscriptions on the same order share one upstream request per
// TTL window. Trades are never cached.
type CachedSource struct {
	platform types.Platform
	source   OrderSource
	cache    cache.Cache
	ttl      time.Duration
}

// NewCachedSource wraps source. A nil cache or non-positive ttl disables
// caching.
func NewCachedSource(platform types.Platform, source OrderSource, c cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{
		platform: platform,
		source:   source,
		cache:    c,
		ttl:      ttl,
	}
}

// GetOrder returns a cached snapshot when one is fresh.
func (c *CachedSource) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.source.GetOrder(ctx, orderID)
	}

	key := c.key(orderID)
	if cached, ok := c.cache.Get(key); ok {
		if order, ok := cached.(types.Order); ok {
			SnapshotCacheHitsTotal.WithLabelValues(string(c.platform)).Inc()
			return &order, nil
		}
	}
	SnapshotCacheMissesTotal.WithLabelValues(string(c.platform)).Inc()

	order, err := c.source.GetOrder(ctx, orderID)
	if err != nil || order == nil {
		return order, err
	}

	c.cache.Set(key, *order, c.ttl)
	return order, nil
}

// GetTrades delegates to the wrapped source.
func (c *CachedSource) GetTrades(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error) {
	return c.source.GetTrades(ctx, filter)
}

// Invalidate drops the cached snapshot for orderID.
func (c *CachedSource) Invalidate(orderID string) {
	if c.cache != nil {
		c.cache.Delete(c.key(orderID))
	}
}

func (c *CachedSource) key(orderID string) string {
	return "order:" + string(c.platform) + ":" + orderID
}
