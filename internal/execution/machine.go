package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

// StartExecution creates a run for intentID and walks the configured phases
// in order. Each phase starts only after the previous one has settled.
//
// On a phase failure the intent is marked FAILED with the error message and a
// *types.PhaseExecutionError is returned together with the run snapshot. The
// run keeps the phase it failed in, and the intent's LastSuccessfulPhase
// tells callers where a resume would start.
func (e *Engine) StartExecution(ctx context.Context, intentID string) (*types.ExecutionRun, error) {
	executor := e.currentExecutor()
	if executor == nil {
		return nil, &types.NotReadyError{Reason: "no chain executor configured"}
	}

	intent, ok := e.registry.Get(intentID)
	if !ok {
		return nil, &types.NotFoundError{Kind: "intent", ID: intentID}
	}

	switch intent.Status {
	case types.PhaseCancelled, types.PhaseCompleted:
		return nil, &types.NotReadyError{Reason: "intent " + intentID + " is " + string(intent.Status)}
	}

	if e.gate != nil {
		err := e.gate.Allow(intent.Amount)
		if err != nil {
			ExecutionsBlockedTotal.Inc()
			e.logger.Warn("execution-blocked-by-gate",
				zap.String("intent-id", intentID),
				zap.Error(err))
			return nil, err
		}
	}

	run := e.createRun(intentID)
	e.registry.LinkToExecution(intentID, run.ID)
	ActiveRuns.Inc()

	e.logger.Info("execution-started",
		zap.String("execution-id", run.ID),
		zap.String("intent-id", intentID),
		zap.Uint64("amount", intent.Amount),
		zap.Int("phase-count", len(e.phases)))

	for _, phase := range e.phases {
		err := e.runPhase(ctx, executor, run.ID, intentID, phase)
		if err != nil {
			return e.failRun(ctx, run.ID, intentID, phase, err)
		}
	}

	return e.completeRun(ctx, run.ID, intentID), nil
}

func (e *Engine) createRun(intentID string) *types.ExecutionRun {
	now := e.now()
	run := &types.ExecutionRun{
		ID:              uuid.NewString(),
		IntentID:        intentID,
		CurrentPhase:    types.PhasePending,
		CompletedPhases: make([]types.ExecutionPhase, 0, len(e.phases)),
		StartedAt:       now,
		UpdatedAt:       now,
		PhaseDurations:  make(map[types.ExecutionPhase]time.Duration, len(e.phases)),
	}

	e.mu.Lock()
	e.runs[run.ID] = run
	e.mu.Unlock()

	return run.Clone()
}

// runPhase performs one transition: enter phase, notify, execute, record.
func (e *Engine) runPhase(
	ctx context.Context,
	executor PhaseExecutor,
	runID string,
	intentID string,
	phase types.ExecutionPhase,
) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	start := e.now()
	snapshot := e.mutateRun(runID, func(run *types.ExecutionRun) {
		run.CurrentPhase = phase
		run.UpdatedAt = start
	})
	e.registry.UpdateStatus(intentID, phase)

	e.emitProgress(ProgressEvent{
		ExecutionID:  runID,
		IntentID:     intentID,
		Phase:        phase,
		Transactions: snapshot.Transactions,
		Timestamp:    start,
	})

	intent, _ := e.registry.Get(intentID)

	e.logger.Info("execution-phase-started",
		zap.String("execution-id", runID),
		zap.String("phase", string(phase)))

	txHash, err := executor.ExecutePhase(ctx, PhaseRequest{
		Phase:  phase,
		Run:    snapshot,
		Intent: intent,
	})
	elapsed := e.now().Sub(start)
	PhaseDurationSeconds.WithLabelValues(string(phase)).Observe(elapsed.Seconds())

	if err != nil {
		PhaseFailuresTotal.WithLabelValues(string(phase)).Inc()
		e.logger.Error("execution-phase-failed",
			zap.String("execution-id", runID),
			zap.String("phase", string(phase)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return err
	}

	e.mutateRun(runID, func(run *types.ExecutionRun) {
		run.PhaseDurations[phase] = elapsed
		run.CompletedPhases = append(run.CompletedPhases, phase)
		run.Transactions.Set(phase, txHash)
		run.UpdatedAt = e.now()
	})
	e.registry.RecordPhaseSuccess(intentID, phase)

	e.logger.Info("execution-phase-completed",
		zap.String("execution-id", runID),
		zap.String("phase", string(phase)),
		zap.String("tx-hash", txHash),
		zap.Duration("elapsed", elapsed))

	return nil
}

func (e *Engine) failRun(
	ctx context.Context,
	runID string,
	intentID string,
	phase types.ExecutionPhase,
	cause error,
) (*types.ExecutionRun, error) {
	message := cause.Error()
	e.registry.RecordFailure(intentID, message)

	snapshot := e.mutateRun(runID, func(run *types.ExecutionRun) {
		run.Error = message
		run.UpdatedAt = e.now()
	})
	ActiveRuns.Dec()
	e.archiveRun(ctx, snapshot)

	return snapshot, &types.PhaseExecutionError{
		Phase:       phase,
		ExecutionID: runID,
		Err:         cause,
	}
}

func (e *Engine) completeRun(ctx context.Context, runID string, intentID string) *types.ExecutionRun {
	now := e.now()
	snapshot := e.mutateRun(runID, func(run *types.ExecutionRun) {
		run.CurrentPhase = types.PhaseCompleted
		run.UpdatedAt = now
		run.CompletedAt = &now
	})
	e.registry.RecordCompletion(intentID)
	ActiveRuns.Dec()

	e.emitProgress(ProgressEvent{
		ExecutionID:  runID,
		IntentID:     intentID,
		Phase:        types.PhaseCompleted,
		Transactions: snapshot.Transactions,
		Timestamp:    now,
	})

	e.logger.Info("execution-completed",
		zap.String("execution-id", runID),
		zap.String("intent-id", intentID),
		zap.Duration("total", now.Sub(snapshot.StartedAt)))

	e.archiveRun(ctx, snapshot)
	return snapshot
}

// mutateRun applies fn under the engine lock and returns a snapshot. Runs in
// a terminal phase are immutable; fn is not applied to them.
func (e *Engine) mutateRun(runID string, fn func(*types.ExecutionRun)) *types.ExecutionRun {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok {
		return nil
	}
	if !run.CurrentPhase.IsTerminal() {
		fn(run)
	}
	return run.Clone()
}

func (e *Engine) archiveRun(ctx context.Context, run *types.ExecutionRun) {
	if e.archive == nil || run == nil {
		return
	}

	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := e.archive.ArchiveRun(archiveCtx, run)
	if err != nil {
		e.logger.Warn("execution-archive-failed",
			zap.String("execution-id", run.ID),
			zap.Error(err))
	}
}
