package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/internal/intents"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedExecutor returns a deterministic tx hash per phase and fails a
// phase for its first failures calls.
type scriptedExecutor struct {
	mu       sync.Mutex
	calls    []types.ExecutionPhase
	failures map[types.ExecutionPhase]int
	failErr  error
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{
		failures: make(map[types.ExecutionPhase]int),
		failErr:  errors.New("execution reverted"),
	}
}

func (s *scriptedExecutor) failFirst(phase types.ExecutionPhase, n int) {
	s.mu.Lock()
	s.failures[phase] = n
	s.mu.Unlock()
}

func (s *scriptedExecutor) ExecutePhase(_ context.Context, req PhaseRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req.Phase)
	if s.failures[req.Phase] > 0 {
		s.failures[req.Phase]--
		return "", s.failErr
	}
	return fmt.Sprintf("0x%s-%d", req.Phase, len(s.calls)), nil
}

func (s *scriptedExecutor) callCount(phase types.ExecutionPhase) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.calls {
		if p == phase {
			n++
		}
	}
	return n
}

type recordingArchive struct {
	mu   sync.Mutex
	runs []*types.ExecutionRun
}

func (a *recordingArchive) ArchiveRun(_ context.Context, run *types.ExecutionRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	return nil
}

type denyGate struct{}

func (denyGate) Allow(uint64) error {
	return &types.NotReadyError{Reason: "balance too low"}
}

func testIntent() *types.TradeIntent {
	return &types.TradeIntent{
		Platform:  types.PlatformPolymarket,
		MarketID:  "fed-cuts-rates-in-december",
		Outcome:   types.OutcomeYes,
		Side:      types.SideBuy,
		Amount:    10_000_000,
		Price:     decimal.RequireFromString("0.42"),
		OrderType: types.OrderTypeGTC,
	}
}

func newTestEngine(t *testing.T, executor PhaseExecutor) (*Engine, string) {
	t.Helper()

	registry := intents.NewRegistry(zap.NewNop())
	intentID, err := registry.Create(testIntent())
	require.NoError(t, err)

	engine, err := New(&Config{
		Registry:   registry,
		Executor:   executor,
		Logger:     zap.NewNop(),
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return engine, intentID
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)

	registry := intents.NewRegistry(nil)

	tests := []struct {
		name    string
		phases  []types.ExecutionPhase
		wantErr bool
	}{
		{"default", nil, false},
		{"full-pipeline", []types.ExecutionPhase{
			types.PhaseSwapping, types.PhaseBridging, types.PhaseAwaitingAttestation,
			types.PhaseClaiming, types.PhaseTrading,
		}, false},
		{"skip-swap", []types.ExecutionPhase{types.PhaseBridging, types.PhaseTrading}, false},
		{"pending-not-executable", []types.ExecutionPhase{types.PhasePending}, true},
		{"terminal-not-executable", []types.ExecutionPhase{types.PhaseCompleted}, true},
		{"out-of-order", []types.ExecutionPhase{types.PhaseBridging, types.PhaseSwapping}, true},
		{"duplicate", []types.ExecutionPhase{types.PhaseSwapping, types.PhaseSwapping}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := New(&Config{Registry: registry, Phases: tt.phases})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultMaxRetries, engine.maxRetries)
			assert.Equal(t, DefaultRetryDelay, engine.retryDelay)
		})
	}
}

func TestStartExecution_NotReadyWithoutExecutor(t *testing.T) {
	engine, intentID := newTestEngine(t, nil)

	run, err := engine.StartExecution(context.Background(), intentID)

	assert.Nil(t, run)
	var notReady *types.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Empty(t, engine.GetActiveExecutions())
}

func TestStartExecution_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t, newScriptedExecutor())

	_, err := engine.StartExecution(context.Background(), "missing")

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)
}

func TestStartExecution_Success(t *testing.T) {
	executor := newScriptedExecutor()
	engine, intentID := newTestEngine(t, executor)

	var events []ProgressEvent
	engine.OnProgress(func(e ProgressEvent) { events = append(events, e) })

	run, err := engine.StartExecution(context.Background(), intentID)
	require.NoError(t, err)

	assert.Equal(t, types.PhaseCompleted, run.CurrentPhase)
	assert.Equal(t, []types.ExecutionPhase{types.PhaseSwapping, types.PhaseBridging}, run.CompletedPhases)
	assert.NotEmpty(t, run.Transactions.Swap)
	assert.NotEmpty(t, run.Transactions.Bridge)
	assert.Empty(t, run.Transactions.Claim)
	assert.NotNil(t, run.CompletedAt)
	assert.Contains(t, run.PhaseDurations, types.PhaseSwapping)
	assert.Contains(t, run.PhaseDurations, types.PhaseBridging)

	intent, ok := engine.GetIntent(intentID)
	require.True(t, ok)
	assert.Equal(t, types.PhaseCompleted, intent.Status)
	assert.Equal(t, run.ID, intent.ExecutionID)
	assert.Equal(t, types.PhaseBridging, intent.LastSuccessfulPhase)

	require.Len(t, events, 3)
	assert.Equal(t, types.PhaseSwapping, events[0].Phase)
	assert.Equal(t, types.PhaseBridging, events[1].Phase)
	assert.Equal(t, types.PhaseCompleted, events[2].Phase)
	assert.Equal(t, run.Transactions.Swap, events[1].Transactions.Swap, "bridging event carries swap evidence")
	for _, e := range events {
		assert.Equal(t, run.ID, e.ExecutionID)
		assert.Equal(t, intentID, e.IntentID)
	}
}

func TestStartExecution_PhaseFailure(t *testing.T) {
	executor := newScriptedExecutor()
	executor.failFirst(types.PhaseBridging, 1)
	engine, intentID := newTestEngine(t, executor)

	run, err := engine.StartExecution(context.Background(), intentID)

	var phaseErr *types.PhaseExecutionError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, types.PhaseBridging, phaseErr.Phase)
	assert.ErrorIs(t, err, executor.failErr)

	require.NotNil(t, run)
	assert.Equal(t, types.PhaseBridging, run.CurrentPhase)
	assert.Equal(t, []types.ExecutionPhase{types.PhaseSwapping}, run.CompletedPhases)
	assert.Equal(t, "execution reverted", run.Error)
	assert.Nil(t, run.CompletedAt)

	intent, _ := engine.GetIntent(intentID)
	assert.Equal(t, types.PhaseFailed, intent.Status)
	assert.Equal(t, "execution reverted", intent.Error)
	assert.Equal(t, types.PhaseSwapping, intent.LastSuccessfulPhase)

	msg, ok := engine.GetStatusMessage(run.ID)
	require.True(t, ok)
	assert.Equal(t, "Execution failed: execution reverted", msg)
}

func TestStartExecution_RejectsCancelledIntent(t *testing.T) {
	executor := newScriptedExecutor()
	engine, intentID := newTestEngine(t, executor)
	require.True(t, engine.Registry().Cancel(intentID))

	_, err := engine.StartExecution(context.Background(), intentID)

	var notReady *types.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Zero(t, executor.callCount(types.PhaseSwapping))
}

func TestStartExecution_GateVeto(t *testing.T) {
	executor := newScriptedExecutor()
	registry := intents.NewRegistry(nil)
	intentID, err := registry.Create(testIntent())
	require.NoError(t, err)

	engine, err := New(&Config{Registry: registry, Executor: executor, Gate: denyGate{}})
	require.NoError(t, err)

	_, err = engine.StartExecution(context.Background(), intentID)

	var notReady *types.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Zero(t, executor.callCount(types.PhaseSwapping))

	intent, _ := registry.Get(intentID)
	assert.Equal(t, types.PhasePending, intent.Status)
}

func TestStartExecution_ArchivesTerminalRuns(t *testing.T) {
	archive := &recordingArchive{}
	executor := newScriptedExecutor()
	executor.failFirst(types.PhaseSwapping, 1)

	registry := intents.NewRegistry(nil)
	intentID, err := registry.Create(testIntent())
	require.NoError(t, err)

	engine, err := New(&Config{Registry: registry, Executor: executor, Archive: archive})
	require.NoError(t, err)

	_, err = engine.StartExecution(context.Background(), intentID)
	require.Error(t, err)
	_, err = engine.StartExecution(context.Background(), intentID)
	require.NoError(t, err)

	require.Len(t, archive.runs, 2)
	assert.NotEmpty(t, archive.runs[0].Error)
	assert.Equal(t, types.PhaseCompleted, archive.runs[1].CurrentPhase)
}

func TestStartExecution_ConfiguredPhases(t *testing.T) {
	executor := newScriptedExecutor()
	registry := intents.NewRegistry(nil)
	intentID, err := registry.Create(testIntent())
	require.NoError(t, err)

	engine, err := New(&Config{
		Registry: registry,
		Executor: executor,
		Phases: []types.ExecutionPhase{
			types.PhaseSwapping, types.PhaseBridging, types.PhaseAwaitingAttestation,
			types.PhaseClaiming, types.PhaseTrading,
		},
	})
	require.NoError(t, err)

	run, err := engine.StartExecution(context.Background(), intentID)
	require.NoError(t, err)

	assert.Len(t, run.CompletedPhases, 5)
	assert.NotEmpty(t, run.Transactions.Claim)
	assert.NotEmpty(t, run.Transactions.Trade)
	assert.Len(t, run.Transactions.Map(), 4)
}

func TestExecuteFullFlow_Success(t *testing.T) {
	executor := newScriptedExecutor()
	engine, intentID := newTestEngine(t, executor)

	var completions []CompletionEvent
	engine.OnCompletion(func(e CompletionEvent) { completions = append(completions, e) })

	result, err := engine.ExecuteFullFlow(context.Background(), intentID, FlowOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.DryRun)
	assert.Equal(t, intentID, result.IntentID)
	assert.Equal(t, []types.ExecutionPhase{types.PhaseSwapping, types.PhaseBridging}, result.PhasesCompleted)
	assert.Equal(t, uint64(10_000_000), result.InputAmount)
	assert.Equal(t, int64(10_000_000), result.OutputAmount)
	assert.Equal(t, 2, result.TransactionCount)
	assert.Contains(t, result.Transactions, "swap")
	assert.Contains(t, result.Transactions, "bridge")
	assert.Equal(t, 1, result.Attempts)

	require.Len(t, completions, 1)
	assert.Same(t, result, completions[0].Result)
}

func TestExecuteFullFlow_RetriesUntilSuccess(t *testing.T) {
	const n = 3

	t.Run("succeeds-with-n-attempts", func(t *testing.T) {
		executor := newScriptedExecutor()
		executor.failFirst(types.PhaseSwapping, n-1)
		engine, intentID := newTestEngine(t, executor)

		result, err := engine.ExecuteFullFlow(context.Background(), intentID, FlowOptions{
			MaxRetries: n,
			RetryDelay: time.Millisecond,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, n, result.Attempts)
		assert.Equal(t, n, executor.callCount(types.PhaseSwapping))

		intent, _ := engine.GetIntent(intentID)
		assert.Equal(t, types.PhaseCompleted, intent.Status)
		assert.Empty(t, intent.Error)
	})

	t.Run("fails-with-n-minus-one-attempts", func(t *testing.T) {
		executor := newScriptedExecutor()
		executor.failFirst(types.PhaseSwapping, n-1)
		engine, intentID := newTestEngine(t, executor)

		result, err := engine.ExecuteFullFlow(context.Background(), intentID, FlowOptions{
			MaxRetries: n - 1,
			RetryDelay: time.Millisecond,
		})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, executor.failErr)
		assert.Equal(t, n-1, executor.callCount(types.PhaseSwapping))

		intent, _ := engine.GetIntent(intentID)
		assert.Equal(t, types.PhaseFailed, intent.Status)
	})
}

func TestExecuteFullFlow_DoesNotRetryNotFound(t *testing.T) {
	executor := newScriptedExecutor()
	engine, _ := newTestEngine(t, executor)

	_, err := engine.ExecuteFullFlow(context.Background(), "missing", FlowOptions{MaxRetries: 5})

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Zero(t, executor.callCount(types.PhaseSwapping))
}

func TestExecuteFullFlow_WaitAbortedByContext(t *testing.T) {
	executor := newScriptedExecutor()
	executor.failFirst(types.PhaseSwapping, 10)
	engine, intentID := newTestEngine(t, executor)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := engine.ExecuteFullFlow(ctx, intentID, FlowOptions{MaxRetries: 3, RetryDelay: time.Hour})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, executor.failErr)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, executor.callCount(types.PhaseSwapping))
}

func TestExecuteFullFlow_WaitAbortedByClose(t *testing.T) {
	executor := newScriptedExecutor()
	executor.failFirst(types.PhaseSwapping, 10)
	engine, intentID := newTestEngine(t, executor)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = engine.Close()
	}()

	_, err := engine.ExecuteFullFlow(context.Background(), intentID, FlowOptions{MaxRetries: 3, RetryDelay: time.Hour})

	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestListeners_PanicDoesNotBlockDelivery(t *testing.T) {
	engine, intentID := newTestEngine(t, newScriptedExecutor())

	var first, third int
	engine.OnProgress(func(ProgressEvent) { first++ })
	engine.OnProgress(func(ProgressEvent) { panic("listener exploded") })
	engine.OnProgress(func(ProgressEvent) { third++ })

	var completed int
	engine.OnCompletion(func(CompletionEvent) { panic("completion exploded") })
	engine.OnCompletion(func(CompletionEvent) { completed++ })

	_, err := engine.ExecuteFullFlow(context.Background(), intentID, FlowOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, first)
	assert.Equal(t, 3, third)
	assert.Equal(t, 1, completed)
}

func TestListeners_Unsubscribe(t *testing.T) {
	engine, intentID := newTestEngine(t, newScriptedExecutor())

	var kept, removed int
	unsubscribe := engine.OnProgress(func(ProgressEvent) { removed++ })
	engine.OnProgress(func(ProgressEvent) { kept++ })
	unsubscribe()
	unsubscribe()

	_, err := engine.StartExecution(context.Background(), intentID)
	require.NoError(t, err)

	assert.Zero(t, removed)
	assert.Equal(t, 3, kept)
}

func TestExecuteFromUpstreamTokens_DryRun(t *testing.T) {
	executor := newScriptedExecutor()
	engine, _ := newTestEngine(t, executor)
	before := engine.Registry().Len()

	result, err := engine.ExecuteFromUpstreamTokens(context.Background(), UpstreamRequest{
		SourceChainID: 1,
		SourceToken:   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Amount:        10_000_000,
	}, UpstreamOptions{DryRun: true})
	require.NoError(t, err)

	estimate := estimator.EstimateCost(10_000_000)
	assert.True(t, result.DryRun)
	assert.True(t, result.Success)
	assert.Zero(t, result.TransactionCount)
	assert.Equal(t, estimate.NetAmount, result.OutputAmount)
	assert.Equal(t, estimate.TotalFee, result.TotalFees)
	assert.Equal(t, int64(9_860_000), result.OutputAmount)
	assert.Empty(t, executor.calls)
	assert.Equal(t, before, engine.Registry().Len())
}

func TestExecuteFromUpstreamTokens_DryRunBelowFees(t *testing.T) {
	engine, _ := newTestEngine(t, newScriptedExecutor())

	result, err := engine.ExecuteFromUpstreamTokens(context.Background(), UpstreamRequest{
		Amount: 50_000,
	}, UpstreamOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, uint64(100_200), result.TotalFees)
	assert.Equal(t, int64(-50_200), result.OutputAmount)
	assert.Equal(t, int64(result.InputAmount)-int64(result.TotalFees), result.OutputAmount)
}

func TestExecuteFromUpstreamTokens_Live(t *testing.T) {
	executor := newScriptedExecutor()
	engine, _ := newTestEngine(t, executor)

	result, err := engine.ExecuteFromUpstreamTokens(context.Background(), UpstreamRequest{
		SourceChainID: 1,
		Amount:        5_000_000,
		Trade: TradeDetails{
			Platform:  types.PlatformKalshi,
			MarketID:  "INXD-24DEC31-B5000",
			Outcome:   types.OutcomeNo,
			Side:      types.SideBuy,
			Price:     decimal.RequireFromString("0.3"),
			OrderType: types.OrderTypeFOK,
		},
	}, UpstreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TransactionCount)

	intent, ok := engine.GetIntent(result.IntentID)
	require.True(t, ok)
	assert.Equal(t, types.PlatformKalshi, intent.Platform)
	assert.Equal(t, uint64(5_000_000), intent.Amount)
}

func TestExecuteFromUpstreamTokens_InvalidTrade(t *testing.T) {
	executor := newScriptedExecutor()
	engine, _ := newTestEngine(t, executor)

	_, err := engine.ExecuteFromUpstreamTokens(context.Background(), UpstreamRequest{
		Amount: 5_000_000,
		Trade:  TradeDetails{Platform: "manifold"},
	}, UpstreamOptions{})

	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Invalid platform", validationErr.Message)
	assert.Empty(t, executor.calls)
}

func TestStatusQueries(t *testing.T) {
	engine, intentID := newTestEngine(t, newScriptedExecutor())

	_, ok := engine.GetExecutionStatus("missing")
	assert.False(t, ok)
	_, ok = engine.GetStatusMessage("missing")
	assert.False(t, ok)
	_, ok = engine.GetEstimatedTimeToCompletion("missing")
	assert.False(t, ok)

	var midRun string
	engine.OnProgress(func(e ProgressEvent) {
		if e.Phase != types.PhaseBridging {
			return
		}
		midRun = e.ExecutionID

		active := engine.GetActiveExecutions()
		require.Len(t, active, 1)
		assert.Equal(t, types.PhaseBridging, active[0].CurrentPhase)

		msg, _ := engine.GetStatusMessage(e.ExecutionID)
		assert.Equal(t, "Bridging USDC to destination chain", msg)

		eta, _ := engine.GetEstimatedTimeToCompletion(e.ExecutionID)
		assert.Equal(t, estimator.EstimateTimeToCompletion(types.PhaseBridging), eta)
	})

	run, err := engine.StartExecution(context.Background(), intentID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, midRun)

	assert.Empty(t, engine.GetActiveExecutions())

	msg, ok := engine.GetStatusMessage(run.ID)
	require.True(t, ok)
	assert.Equal(t, "Execution completed successfully", msg)

	eta, ok := engine.GetEstimatedTimeToCompletion(run.ID)
	require.True(t, ok)
	assert.Zero(t, eta.Average)

	snapshot, _ := engine.GetExecutionStatus(run.ID)
	snapshot.CompletedPhases[0] = types.PhaseTrading
	again, _ := engine.GetExecutionStatus(run.ID)
	assert.Equal(t, types.PhaseSwapping, again.CompletedPhases[0])
}

func TestPhaseRouter(t *testing.T) {
	chain := newScriptedExecutor()
	venue := newScriptedExecutor()

	router := NewPhaseRouter()
	router.Register(chain, types.PhaseSwapping, types.PhaseBridging)
	router.Register(venue, types.PhaseTrading)

	assert.True(t, router.Handles(types.PhaseBridging))
	assert.False(t, router.Handles(types.PhaseClaiming))

	_, err := router.ExecutePhase(context.Background(), PhaseRequest{Phase: types.PhaseTrading})
	require.NoError(t, err)
	assert.Equal(t, 1, venue.callCount(types.PhaseTrading))
	assert.Zero(t, chain.callCount(types.PhaseTrading))

	_, err = router.ExecutePhase(context.Background(), PhaseRequest{Phase: types.PhaseClaiming})
	var notReady *types.NotReadyError
	assert.ErrorAs(t, err, &notReady)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt-%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, backoff(5*time.Second, tt.attempt))
		})
	}

	t.Run("saturates", func(t *testing.T) {
		assert.Positive(t, backoff(time.Hour, 60))
		assert.Positive(t, backoff(time.Hour, 100))
	})
}
