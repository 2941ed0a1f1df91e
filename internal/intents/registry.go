// Package intents owns the lifecycle of user-submitted trade intents.
package intents

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Registry stores trade intents in memory. Intents are never deleted; they
// are only marked CANCELLED, FAILED or COMPLETED.
type Registry struct {
	mu      sync.RWMutex
	intents map[string]*types.TradeIntent
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		intents: make(map[string]*types.TradeIntent),
		logger:  logger,
		now:     time.Now,
	}
}

// Validate checks intent fields in the order amount, platform, price,
// outcome, side, order type and returns the first violation.
func Validate(intent *types.TradeIntent) error {
	if intent == nil || intent.Amount == 0 {
		return &types.ValidationError{Field: "amount", Message: "Amount must be greater than 0"}
	}
	if intent.Amount > math.MaxInt64 {
		return &types.ValidationError{Field: "amount", Message: "Amount exceeds maximum"}
	}
	if !intent.Platform.Valid() {
		return &types.ValidationError{Field: "platform", Message: "Invalid platform"}
	}
	if intent.Price.LessThan(decimal.Zero) || intent.Price.GreaterThan(decimal.NewFromInt(1)) {
		return &types.ValidationError{Field: "price", Message: "Price must be between 0 and 1"}
	}
	if !intent.Outcome.Valid() {
		return &types.ValidationError{Field: "outcome", Message: "Invalid outcome"}
	}
	if !intent.Side.Valid() {
		return &types.ValidationError{Field: "side", Message: "Invalid side"}
	}
	if !intent.OrderType.Valid() {
		return &types.ValidationError{Field: "orderType", Message: "Invalid order type"}
	}
	return nil
}

// Validate checks intent without storing it.
func (r *Registry) Validate(intent *types.TradeIntent) error {
	return Validate(intent)
}

// Create validates intent, assigns an ID and PENDING status, and stores a
// copy. The caller's value is not modified.
func (r *Registry) Create(intent *types.TradeIntent) (string, error) {
	err := Validate(intent)
	if err != nil {
		IntentsRejectedTotal.Inc()
		r.logger.Debug("intent-rejected", zap.Error(err))
		return "", err
	}

	now := r.now()
	stored := intent.Clone()
	stored.ID = uuid.NewString()
	stored.Status = types.PhasePending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.ExecutionID = ""
	stored.Error = ""
	stored.LastSuccessfulPhase = ""

	r.mu.Lock()
	r.intents[stored.ID] = stored
	r.mu.Unlock()

	IntentsCreatedTotal.WithLabelValues(string(stored.Platform)).Inc()
	r.logger.Info("intent-created",
		zap.String("intent-id", stored.ID),
		zap.String("platform", string(stored.Platform)),
		zap.String("market-id", stored.MarketID),
		zap.Uint64("amount", stored.Amount))

	return stored.ID, nil
}

// Get returns a copy of the intent.
func (r *Registry) Get(id string) (*types.TradeIntent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intent, ok := r.intents[id]
	if !ok {
		return nil, false
	}
	return intent.Clone(), true
}

// LinkToExecution records the execution run for an intent and returns
// executionID. Unknown intents are ignored so callers never special-case a
// race between creation and linking.
func (r *Registry) LinkToExecution(intentID, executionID string) string {
	r.update(intentID, func(intent *types.TradeIntent) {
		intent.ExecutionID = executionID
	})
	return executionID
}

// UpdateStatus sets the intent status. Unknown intents are ignored.
func (r *Registry) UpdateStatus(intentID string, phase types.ExecutionPhase) {
	r.update(intentID, func(intent *types.TradeIntent) {
		intent.Status = phase
	})
}

// RecordPhaseSuccess marks phase as the last phase the intent completed.
func (r *Registry) RecordPhaseSuccess(intentID string, phase types.ExecutionPhase) {
	r.update(intentID, func(intent *types.TradeIntent) {
		intent.LastSuccessfulPhase = phase
	})
}

// RecordFailure marks the intent FAILED with message.
func (r *Registry) RecordFailure(intentID string, message string) {
	r.update(intentID, func(intent *types.TradeIntent) {
		intent.Status = types.PhaseFailed
		intent.Error = message
	})
}

// RecordCompletion marks the intent COMPLETED and clears any error left by
// an earlier failed attempt.
func (r *Registry) RecordCompletion(intentID string) {
	r.update(intentID, func(intent *types.TradeIntent) {
		intent.Status = types.PhaseCompleted
		intent.Error = ""
	})
}

// ListPending returns copies of all PENDING intents, oldest first.
func (r *Registry) ListPending() []*types.TradeIntent {
	r.mu.RLock()
	pending := make([]*types.TradeIntent, 0, len(r.intents))
	for _, intent := range r.intents {
		if intent.Status == types.PhasePending {
			pending = append(pending, intent.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Cancel moves a PENDING intent to CANCELLED. It returns false for unknown
// intents and for any other status, including CANCELLED.
func (r *Registry) Cancel(intentID string) bool {
	r.mu.Lock()
	intent, ok := r.intents[intentID]
	if !ok || intent.Status != types.PhasePending {
		r.mu.Unlock()
		return false
	}
	intent.Status = types.PhaseCancelled
	intent.UpdatedAt = r.now()
	r.mu.Unlock()

	IntentsCancelledTotal.Inc()
	r.logger.Info("intent-cancelled", zap.String("intent-id", intentID))
	return true
}

// Len returns the number of stored intents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}

func (r *Registry) update(intentID string, mutate func(*types.TradeIntent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[intentID]
	if !ok {
		return
	}
	mutate(intent)
	intent.UpdatedAt = r.now()
}
