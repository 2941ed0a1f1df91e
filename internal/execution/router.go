package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/polybridge/pkg/types"
)

// PhaseRouter dispatches each phase to the executor registered for it, so
// chain actions (swap, bridge, claim) and venue actions (trade) can live in
// separate collaborators.
type PhaseRouter struct {
	mu        sync.RWMutex
	executors map[types.ExecutionPhase]PhaseExecutor
}

// NewPhaseRouter creates an empty router.
func NewPhaseRouter() *PhaseRouter {
	return &PhaseRouter{
		executors: make(map[types.ExecutionPhase]PhaseExecutor),
	}
}

// Register installs executor for each of phases, replacing any previous one.
func (r *PhaseRouter) Register(executor PhaseExecutor, phases ...types.ExecutionPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, phase := range phases {
		r.executors[phase] = executor
	}
}

// Handles reports whether an executor is registered for phase.
func (r *PhaseRouter) Handles(phase types.ExecutionPhase) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[phase]
	return ok
}

// ExecutePhase implements PhaseExecutor.
func (r *PhaseRouter) ExecutePhase(ctx context.Context, req PhaseRequest) (string, error) {
	r.mu.RLock()
	executor, ok := r.executors[req.Phase]
	r.mu.RUnlock()

	if !ok {
		return "", &types.NotReadyError{Reason: fmt.Sprintf("no executor registered for phase %s", req.Phase)}
	}
	return executor.ExecutePhase(ctx, req)
}
