// Package app wires the intent registry, execution engine, order tracker and
// their collaborators into one process.
package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polybridge/internal/circuitbreaker"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/internal/intents"
	"github.com/mselser95/polybridge/internal/notify"
	"github.com/mselser95/polybridge/internal/platform"
	"github.com/mselser95/polybridge/internal/storage"
	"github.com/mselser95/polybridge/internal/tracker"
	"github.com/mselser95/polybridge/pkg/cache"
	"github.com/mselser95/polybridge/pkg/config"
	"github.com/mselser95/polybridge/pkg/healthprobe"
	"github.com/mselser95/polybridge/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	registry      *intents.Registry
	engine        *execution.Engine
	router        *execution.PhaseRouter
	tracker       *tracker.Tracker
	sources       *platform.Registry
	snapshotCache *cache.RistrettoCache
	storage       storage.Storage
	hub           *notify.Hub
	breaker       *circuitbreaker.Breaker // nil when disabled
	rpcClients    []*ethclient.Client
	unsubscribe   []func()
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

// Engine returns the execution engine.
func (a *App) Engine() *execution.Engine {
	return a.engine
}

// Tracker returns the order tracker.
func (a *App) Tracker() *tracker.Tracker {
	return a.tracker
}

// Registry returns the intent registry.
func (a *App) Registry() *intents.Registry {
	return a.registry
}

// Router returns the phase router, for registering additional executors.
func (a *App) Router() *execution.PhaseRouter {
	return a.router
}

// Sources returns the platform order-source registry.
func (a *App) Sources() *platform.Registry {
	return a.sources
}
