package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionPhase_Order(t *testing.T) {
	for i, p := range PipelinePhases {
		assert.Equal(t, i, p.Order())
		assert.False(t, p.IsTerminal())
		assert.True(t, p.Valid())
	}

	for _, p := range []ExecutionPhase{PhaseCompleted, PhaseFailed, PhaseCancelled} {
		assert.Equal(t, -1, p.Order())
		assert.True(t, p.IsTerminal())
		assert.True(t, p.Valid())
	}

	assert.False(t, ExecutionPhase("WAITING").Valid())
}

func TestParsePhase(t *testing.T) {
	p, ok := ParsePhase("CLAIMING")
	assert.True(t, ok)
	assert.Equal(t, PhaseClaiming, p)

	_, ok = ParsePhase("claiming")
	assert.False(t, ok)
}

func TestTransactionEvidence_Set(t *testing.T) {
	var ev TransactionEvidence

	assert.True(t, ev.Set(PhaseSwapping, "0xswap"))
	assert.True(t, ev.Set(PhaseTrading, "order-1"))
	assert.False(t, ev.Set(PhaseAwaitingAttestation, "0xignored"))

	assert.Equal(t, map[string]string{"swap": "0xswap", "trade": "order-1"}, ev.Map())
}

func TestExecutionRun_CloneIsDeep(t *testing.T) {
	done := time.Now()
	run := &ExecutionRun{
		ID:              "exec-1",
		CompletedPhases: []ExecutionPhase{PhasePending},
		PhaseDurations:  map[ExecutionPhase]time.Duration{PhasePending: time.Second},
		CompletedAt:     &done,
	}

	c := run.Clone()
	c.CompletedPhases[0] = PhaseSwapping
	c.PhaseDurations[PhasePending] = time.Minute
	*c.CompletedAt = done.Add(time.Hour)

	assert.Equal(t, PhasePending, run.CompletedPhases[0])
	assert.Equal(t, time.Second, run.PhaseDurations[PhasePending])
	assert.Equal(t, done, *run.CompletedAt)

	var nilRun *ExecutionRun
	assert.Nil(t, nilRun.Clone())
}

func TestTradeIntent_Clone(t *testing.T) {
	intent := &TradeIntent{ID: "i-1", Price: decimal.RequireFromString("0.4")}
	c := intent.Clone()
	c.ID = "i-2"

	assert.Equal(t, "i-1", intent.ID)
	assert.True(t, c.Price.Equal(intent.Price))
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, PlatformKalshi.Valid())
	assert.False(t, Platform("betfair").Valid())
	assert.True(t, OutcomeNo.Valid())
	assert.False(t, Outcome("MAYBE").Valid())
	assert.True(t, SideSell.Valid())
	assert.False(t, Side("HOLD").Valid())
	assert.True(t, OrderTypeIOC.Valid())
	assert.False(t, OrderType("GTD").Valid())
}

func TestOrderStatus(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		terminal bool
		fills    bool
	}{
		{OrderStatusPending, false, false},
		{OrderStatusOpen, false, false},
		{OrderStatusPartiallyFilled, false, true},
		{OrderStatusFilled, true, true},
		{OrderStatusCancelled, true, false},
		{OrderStatusExpired, true, false},
		{OrderStatusRejected, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.fills, tt.status.HasFills())
		})
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("rpc down")

	phaseErr := &PhaseExecutionError{Phase: PhaseBridging, ExecutionID: "exec-1", Err: cause}
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", phaseErr), cause)
	assert.Equal(t, "phase BRIDGING failed (execution exec-1): rpc down", phaseErr.Error())

	collErr := &CollaboratorError{Platform: PlatformKalshi, OrderID: "o-1", Op: "not-found"}
	assert.Equal(t, "not-found o-1 on kalshi failed", collErr.Error())
	assert.NoError(t, errors.Unwrap(collErr))

	var nf *NotFoundError
	require.True(t, errors.As(fmt.Errorf("x: %w", &NotFoundError{Kind: "intent", ID: "i-9"}), &nf))
	assert.Equal(t, "intent not found: i-9", nf.Error())

	assert.Equal(t, "not ready: no executor", (&NotReadyError{Reason: "no executor"}).Error())
	assert.Equal(t, "maximum subscriptions reached (5)", (&CapacityError{Limit: 5}).Error())
}
