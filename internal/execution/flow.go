package execution

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

// FlowOptions overrides the engine retry policy for one flow. Zero values
// fall back to the engine configuration.
type FlowOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

// ExecutionResult summarizes a finished flow.
type ExecutionResult struct {
	Success          bool                   `json:"success"`
	DryRun           bool                   `json:"dryRun"`
	ExecutionID      string                 `json:"executionId,omitempty"`
	IntentID         string                 `json:"intentId,omitempty"`
	InputAmount      uint64                 `json:"inputAmount"`
	OutputAmount     int64                  `json:"outputAmount"`
	TotalFees        uint64                 `json:"totalFees"`
	Estimate         types.CostEstimate     `json:"estimate"`
	EstimatedTime    estimator.TimeEstimate `json:"estimatedTime"`
	PhasesCompleted  []types.ExecutionPhase `json:"phasesCompleted"`
	Duration         time.Duration          `json:"duration"`
	Transactions     map[string]string      `json:"transactions"`
	TransactionCount int                    `json:"transactionCount"`
	Attempts         int                    `json:"attempts"`
}

// ExecuteFullFlow runs StartExecution for intentID, retrying the whole flow
// up to opts.MaxRetries attempts. Attempt n (0-indexed) that fails is
// followed by a sleep of RetryDelay << n. Validation, not-found and
// not-ready errors are returned immediately. When every attempt fails the
// last error is returned; partial progress is visible only through
// GetExecutionStatus.
func (e *Engine) ExecuteFullFlow(ctx context.Context, intentID string, opts FlowOptions) (*ExecutionResult, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = e.retryDelay
	}

	start := e.now()
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		FlowAttemptsTotal.Inc()

		run, err := e.StartExecution(ctx, intentID)
		if err == nil {
			return e.finishFlow(intentID, run, start, attempt+1), nil
		}
		lastErr = err

		if !retryable(err) {
			FlowsFailedTotal.WithLabelValues(failureReason(err)).Inc()
			return nil, err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := backoff(retryDelay, attempt)
		e.logger.Warn("execution-flow-retrying",
			zap.String("intent-id", intentID),
			zap.Int("attempt", attempt+1),
			zap.Int("max-retries", maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))

		waitErr := e.wait(ctx, delay)
		if waitErr != nil {
			FlowsFailedTotal.WithLabelValues("aborted").Inc()
			e.logger.Warn("execution-flow-aborted",
				zap.String("intent-id", intentID),
				zap.Error(waitErr))
			return nil, errors.Join(waitErr, lastErr)
		}
	}

	FlowsFailedTotal.WithLabelValues("exhausted").Inc()
	e.logger.Error("execution-flow-failed",
		zap.String("intent-id", intentID),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr))

	return nil, lastErr
}

func (e *Engine) finishFlow(intentID string, run *types.ExecutionRun, start time.Time, attempts int) *ExecutionResult {
	var amount uint64
	intent, ok := e.registry.Get(intentID)
	if ok {
		amount = intent.Amount
	}

	estimate := estimator.EstimateCost(amount)
	transactions := run.Transactions.Map()
	now := e.now()

	result := &ExecutionResult{
		Success:          true,
		ExecutionID:      run.ID,
		IntentID:         intentID,
		InputAmount:      amount,
		OutputAmount:     int64(amount), // amounts are bounded by intent validation
		TotalFees:        estimate.TotalFee,
		Estimate:         estimate,
		PhasesCompleted:  run.CompletedPhases,
		Duration:         now.Sub(start),
		Transactions:     transactions,
		TransactionCount: len(transactions),
		Attempts:         attempts,
	}

	FlowsCompletedTotal.Inc()
	e.emitCompletion(CompletionEvent{Result: result, Timestamp: now})

	return result
}

// backoff returns base × 2^attempt, saturating instead of overflowing.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt >= 62 || base > time.Duration(math.MaxInt64>>uint(attempt)) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(attempt)
}

func retryable(err error) bool {
	var validationErr *types.ValidationError
	var notFoundErr *types.NotFoundError
	var notReadyErr *types.NotReadyError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &notFoundErr), errors.As(err, &notReadyErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func failureReason(err error) string {
	var notFoundErr *types.NotFoundError
	var notReadyErr *types.NotReadyError

	switch {
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &notReadyErr):
		return "not_ready"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	}
	return "invalid"
}
