// Package execution drives trade intents through the cross-chain pipeline:
// swap collateral, bridge, await attestation, claim, trade.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/polybridge/internal/intents"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of full-flow attempts when none is configured.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base backoff between full-flow attempts.
	DefaultRetryDelay = 5 * time.Second
)

// ErrEngineClosed is returned when a retry wait is interrupted by Close.
var ErrEngineClosed = errors.New("execution engine closed")

// DefaultPhases are the phases executed in-core. Attestation, claiming and
// trading run only when a deployment configures them explicitly.
var DefaultPhases = []types.ExecutionPhase{types.PhaseSwapping, types.PhaseBridging} //nolint:gochecknoglobals // default table

// PhaseRequest is the run context handed to a PhaseExecutor. Run and Intent
// are snapshots; mutating them has no effect on the engine.
type PhaseRequest struct {
	Phase  types.ExecutionPhase
	Run    *types.ExecutionRun
	Intent *types.TradeIntent
}

// PhaseExecutor performs the real-world action for one phase and returns a
// transaction (or venue order) identifier once it has settled.
type PhaseExecutor interface {
	ExecutePhase(ctx context.Context, req PhaseRequest) (txHash string, err error)
}

// PhaseExecutorFunc adapts a function to PhaseExecutor.
type PhaseExecutorFunc func(ctx context.Context, req PhaseRequest) (string, error)

// ExecutePhase calls f.
func (f PhaseExecutorFunc) ExecutePhase(ctx context.Context, req PhaseRequest) (string, error) {
	return f(ctx, req)
}

// Gate can veto a new execution before any state is created, e.g. when the
// wallet balance is too low. It should return a *types.NotReadyError.
type Gate interface {
	Allow(amount uint64) error
}

// Archive receives run snapshots once a run completes or fails.
type Archive interface {
	ArchiveRun(ctx context.Context, run *types.ExecutionRun) error
}

// Config holds engine configuration.
type Config struct {
	Registry   *intents.Registry
	Executor   PhaseExecutor // Optional: StartExecution fails with NotReady until set
	Gate       Gate          // Optional
	Archive    Archive       // Optional
	Logger     *zap.Logger
	MaxRetries int
	RetryDelay time.Duration
	Phases     []types.ExecutionPhase // Defaults to DefaultPhases
}

// Engine is the execution state machine. One engine owns its runs map and
// event listeners; construct one per process and pass it explicitly.
type Engine struct {
	registry   *intents.Registry
	gate       Gate
	archive    Archive
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
	phases     []types.ExecutionPhase

	mu       sync.RWMutex
	executor PhaseExecutor
	runs     map[string]*types.ExecutionRun

	listenerMu         sync.Mutex
	nextListenerID     uint64
	progressListeners  []progressListener
	completedListeners []completionListener

	closed    chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// New creates an execution engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("intent registry cannot be nil")
	}

	phases := cfg.Phases
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	err := validatePhases(phases)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Engine{
		registry:   cfg.Registry,
		gate:       cfg.Gate,
		archive:    cfg.Archive,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		phases:     append([]types.ExecutionPhase(nil), phases...),
		executor:   cfg.Executor,
		runs:       make(map[string]*types.ExecutionRun),
		closed:     make(chan struct{}),
		now:        time.Now,
	}, nil
}

// validatePhases requires executable pipeline phases in strictly increasing order.
func validatePhases(phases []types.ExecutionPhase) error {
	last := types.PhasePending.Order()
	for _, phase := range phases {
		order := phase.Order()
		if order <= types.PhasePending.Order() {
			return fmt.Errorf("phase %q is not executable", phase)
		}
		if order <= last {
			return fmt.Errorf("phase %q is out of pipeline order", phase)
		}
		last = order
	}
	return nil
}

// SetExecutor installs or replaces the chain-execution collaborator.
func (e *Engine) SetExecutor(executor PhaseExecutor) {
	e.mu.Lock()
	e.executor = executor
	e.mu.Unlock()
}

// Phases returns the configured phase sequence.
func (e *Engine) Phases() []types.ExecutionPhase {
	return append([]types.ExecutionPhase(nil), e.phases...)
}

// Registry returns the intent registry the engine executes against.
func (e *Engine) Registry() *intents.Registry {
	return e.registry
}

// Close interrupts pending retry waits. In-flight phase actions are not
// cancelled; they settle through their own context.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.logger.Info("execution-engine-closed")
	})
	return nil
}

func (e *Engine) currentExecutor() PhaseExecutor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executor
}

// wait sleeps for d unless ctx is done or the engine is closed.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closed:
		return ErrEngineClosed
	}
}
