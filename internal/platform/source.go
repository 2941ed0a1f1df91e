// Package platform resolves order-data collaborators by prediction-market
// venue.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mselser95/polybridge/pkg/types"
)

// ErrUnsupportedPlatform is returned by Resolve for a platform with no
// registered source.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// OrderSource reads order state from one venue. GetOrder returns (nil, nil)
// when the order does not exist.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string) (*types.Order, error)
	GetTrades(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error)
}

// Resolver looks up the OrderSource for a platform.
type Resolver interface {
	Resolve(platform types.Platform) (OrderSource, error)
}

// Factory builds an OrderSource on first use.
type Factory func() (OrderSource, error)

// Registry is a Resolver keyed by platform. Sources can be registered
// directly or lazily through a factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.Platform]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[types.Platform]Factory),
	}
}

// Register installs source for platform.
func (r *Registry) Register(platform types.Platform, source OrderSource) {
	r.RegisterFactory(platform, func() (OrderSource, error) {
		return source, nil
	})
}

// RegisterFactory installs a lazily-built source for platform.
func (r *Registry) RegisterFactory(platform types.Platform, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[platform] = factory
}

// Resolve implements Resolver.
func (r *Registry) Resolve(platform types.Platform) (OrderSource, error) {
	r.mu.RLock()
	factory, ok := r.factories[platform]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	source, err := factory()
	if err != nil {
		return nil, fmt.Errorf("build %s source: %w", platform, err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: %s source unavailable", ErrUnsupportedPlatform, platform)
	}
	return source, nil
}

// Platforms lists registered platforms in name order.
func (r *Registry) Platforms() []types.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Platform, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
