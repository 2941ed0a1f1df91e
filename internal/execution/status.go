package execution

import (
	"sort"

	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/pkg/types"
)

var phaseMessages = map[types.ExecutionPhase]string{ //nolint:gochecknoglobals // static lookup table
	types.PhasePending:             "Waiting to start execution",
	types.PhaseSwapping:            "Swapping tokens to USDC on source chain",
	types.PhaseBridging:            "Bridging USDC to destination chain",
	types.PhaseAwaitingAttestation: "Waiting for bridge attestation",
	types.PhaseClaiming:            "Claiming USDC on destination chain",
	types.PhaseTrading:             "Placing trade",
	types.PhaseCompleted:           "Execution completed successfully",
	types.PhaseCancelled:           "Execution cancelled",
}

// GetExecutionStatus returns a snapshot of the run.
func (e *Engine) GetExecutionStatus(executionID string) (*types.ExecutionRun, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	run, ok := e.runs[executionID]
	if !ok {
		return nil, false
	}
	return run.Clone(), true
}

// GetStatusMessage renders the run's phase as a human-readable string. A run
// that recorded an error reads as failed regardless of the phase it stopped in.
func (e *Engine) GetStatusMessage(executionID string) (string, bool) {
	run, ok := e.GetExecutionStatus(executionID)
	if !ok {
		return "", false
	}
	return statusMessage(run), true
}

func statusMessage(run *types.ExecutionRun) string {
	if run.Error != "" || run.CurrentPhase == types.PhaseFailed {
		if run.Error == "" {
			return "Execution failed"
		}
		return "Execution failed: " + run.Error
	}

	msg, ok := phaseMessages[run.CurrentPhase]
	if !ok {
		return "Unknown status"
	}
	return msg
}

// GetEstimatedTimeToCompletion returns the remaining-time projection for the
// run's current phase. Failed runs report zero.
func (e *Engine) GetEstimatedTimeToCompletion(executionID string) (estimator.TimeEstimate, bool) {
	run, ok := e.GetExecutionStatus(executionID)
	if !ok {
		return estimator.TimeEstimate{}, false
	}
	if run.Error != "" {
		return estimator.TimeEstimate{}, true
	}
	return estimator.EstimateTimeToCompletion(run.CurrentPhase), true
}

// GetActiveExecutions returns every run whose current phase is not terminal,
// oldest first. A failed run keeps the phase it failed in and therefore
// stays in this list; check Error to tell it apart from a live run.
func (e *Engine) GetActiveExecutions() []*types.ExecutionRun {
	e.mu.RLock()
	active := make([]*types.ExecutionRun, 0, len(e.runs))
	for _, run := range e.runs {
		if !run.CurrentPhase.IsTerminal() {
			active = append(active, run.Clone())
		}
	}
	e.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active
}

// GetIntent returns a copy of the intent from the engine's registry.
func (e *Engine) GetIntent(intentID string) (*types.TradeIntent, bool) {
	return e.registry.Get(intentID)
}
