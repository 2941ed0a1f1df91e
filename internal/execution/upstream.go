package execution

import (
	"context"
	"fmt"

	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeDetails is the trade a user wants placed once funds arrive.
type TradeDetails struct {
	Platform  types.Platform  `json:"platform"`
	MarketID  string          `json:"marketId"`
	Outcome   types.Outcome   `json:"outcome"`
	Side      types.Side      `json:"side"`
	Price     decimal.Decimal `json:"price"`
	OrderType types.OrderType `json:"orderType"`
}

// UpstreamRequest describes funds held as an arbitrary token on a source
// chain that should end up as a trade on a prediction market.
type UpstreamRequest struct {
	SourceChainID uint64       `json:"sourceChainId"`
	SourceToken   string       `json:"sourceToken"`
	Amount        uint64       `json:"amount"`
	Trade         TradeDetails `json:"trade"`
}

// UpstreamOptions controls ExecuteFromUpstreamTokens.
type UpstreamOptions struct {
	DryRun bool
	Flow   FlowOptions
}

// ExecuteFromUpstreamTokens creates an intent from req and runs the full
// flow. With DryRun set it only computes the fee and time projection: no
// intent is created and no collaborator is called.
func (e *Engine) ExecuteFromUpstreamTokens(
	ctx context.Context,
	req UpstreamRequest,
	opts UpstreamOptions,
) (*ExecutionResult, error) {
	if opts.DryRun {
		return e.dryRun(req), nil
	}

	intentID, err := e.registry.Create(&types.TradeIntent{
		Platform:  req.Trade.Platform,
		MarketID:  req.Trade.MarketID,
		Outcome:   req.Trade.Outcome,
		Side:      req.Trade.Side,
		Amount:    req.Amount,
		Price:     req.Trade.Price,
		OrderType: req.Trade.OrderType,
	})
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}

	e.logger.Info("upstream-execution-started",
		zap.String("intent-id", intentID),
		zap.Uint64("source-chain-id", req.SourceChainID),
		zap.String("source-token", req.SourceToken),
		zap.Uint64("amount", req.Amount))

	return e.ExecuteFullFlow(ctx, intentID, opts.Flow)
}

func (e *Engine) dryRun(req UpstreamRequest) *ExecutionResult {
	DryRunsTotal.Inc()
	estimate := estimator.EstimateCost(req.Amount)

	return &ExecutionResult{
		Success:          true,
		DryRun:           true,
		InputAmount:      req.Amount,
		OutputAmount:     estimate.NetAmount,
		TotalFees:        estimate.TotalFee,
		Estimate:         estimate,
		EstimatedTime:    estimator.EstimateTimeToCompletion(types.PhasePending),
		PhasesCompleted:  []types.ExecutionPhase{},
		Transactions:     map[string]string{},
		TransactionCount: 0,
	}
}
