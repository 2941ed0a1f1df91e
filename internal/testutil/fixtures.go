package testutil

import (
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
)

// CreateTestIntent creates a valid PENDING intent for marketID.
func CreateTestIntent(id string, marketID string) *types.TradeIntent {
	now := time.Now()
	return &types.TradeIntent{
		ID:        id,
		Platform:  types.PlatformPolymarket,
		MarketID:  marketID,
		Outcome:   types.OutcomeYes,
		Side:      types.SideBuy,
		Amount:    10_000_000,
		Price:     decimal.RequireFromString("0.55"),
		OrderType: types.OrderTypeGTC,
		Status:    types.PhasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestOrder creates an order snapshot in the given status.
func CreateTestOrder(id string, platform types.Platform, status types.OrderStatus) *types.Order {
	now := time.Now()
	order := &types.Order{
		ID:        id,
		Platform:  platform,
		MarketID:  "market-" + id,
		Outcome:   "YES",
		Side:      types.SideBuy,
		Price:     0.55,
		Size:      10,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch status {
	case types.OrderStatusFilled:
		order.SizeFilled = order.Size
	case types.OrderStatusPartiallyFilled:
		order.SizeFilled = order.Size / 2
	}
	return order
}

// CreateTestTrade creates a fill against orderID.
func CreateTestTrade(id string, orderID string, size float64) types.Trade {
	return types.Trade{
		ID:        id,
		OrderID:   orderID,
		MarketID:  "market-" + orderID,
		Outcome:   "YES",
		Side:      types.SideBuy,
		Price:     0.55,
		Size:      size,
		Timestamp: time.Now(),
	}
}
