package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies a prediction-market venue.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformKalshi     Platform = "kalshi"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformPolymarket || p == PlatformKalshi
}

// Outcome is the market outcome being traded.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Valid reports whether o is YES or NO.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType is the time-in-force policy of the final trade.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeIOC OrderType = "IOC" // Immediate-Or-Cancel
)

// Valid reports whether t is GTC, FOK or IOC.
func (t OrderType) Valid() bool {
	return t == OrderTypeGTC || t == OrderTypeFOK || t == OrderTypeIOC
}

// TradeIntent is a user's declared trade, before and during execution.
// Amount is in the smallest collateral unit (6 decimals for USDC).
type TradeIntent struct {
	ID                  string          `json:"id"`
	Platform            Platform        `json:"platform"`
	MarketID            string          `json:"marketId"`
	Outcome             Outcome         `json:"outcome"`
	Side                Side            `json:"side"`
	Amount              uint64          `json:"amount"`
	Price               decimal.Decimal `json:"price"`
	OrderType           OrderType       `json:"orderType"`
	Status              ExecutionPhase  `json:"status"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	ExecutionID         string          `json:"executionId,omitempty"`
	Error               string          `json:"error,omitempty"`
	LastSuccessfulPhase ExecutionPhase  `json:"lastSuccessfulPhase,omitempty"`
}

// Clone returns a copy that shares no mutable state with t.
func (t *TradeIntent) Clone() *TradeIntent {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
