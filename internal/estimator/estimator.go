// Package estimator computes deterministic fee and time projections for the
// cross-chain execution pipeline.
package estimator

import (
	"math"
	"math/big"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	// SwapFeeBPS is the collateral swap fee in basis points (0.30%).
	SwapFeeBPS = 30
	// TradingFeeBPS is the venue trading fee in basis points (0.10%).
	TradingFeeBPS = 10
	// BridgeFee is the fixed bridge fee in smallest collateral units ($0.10).
	BridgeFee = 100_000

	bpsDenominator = 10_000
	// CollateralDecimals is the decimal precision of the collateral token.
	CollateralDecimals = 6
	// MaxAmount is the largest accepted amount so that signed net amounts
	// stay exact.
	MaxAmount = math.MaxInt64
)

// TimeEstimate is a remaining-time projection for a phase.
type TimeEstimate struct {
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
}

// Seconds returns the estimate as whole seconds (min, max, average).
func (t TimeEstimate) Seconds() (minSec, maxSec, avgSec int64) {
	return int64(t.Min / time.Second), int64(t.Max / time.Second), int64(t.Average / time.Second)
}

// Remaining time to completion, measured from the start of each phase.
// Attestation dominates: CCTP attestations typically land in 13-19 minutes.
var timeTable = map[types.ExecutionPhase]TimeEstimate{ //nolint:gochecknoglobals // static lookup table
	types.PhasePending:             {Min: 15 * time.Minute, Max: 30 * time.Minute, Average: 20 * time.Minute},
	types.PhaseSwapping:            {Min: 14 * time.Minute, Max: 29 * time.Minute, Average: 19 * time.Minute},
	types.PhaseBridging:            {Min: 13 * time.Minute, Max: 27 * time.Minute, Average: 18 * time.Minute},
	types.PhaseAwaitingAttestation: {Min: 12 * time.Minute, Max: 25 * time.Minute, Average: 16 * time.Minute},
	types.PhaseClaiming:            {Min: 30 * time.Second, Max: 2 * time.Minute, Average: 1 * time.Minute},
	types.PhaseTrading:             {Min: 5 * time.Second, Max: 30 * time.Second, Average: 10 * time.Second},
}

// EstimateCost computes the fee breakdown for amount.
// Fees use truncating integer division. NetAmount is amount - totalFee and
// goes negative when fees exceed the input, marking the trade uneconomic.
func EstimateCost(amount uint64) types.CostEstimate {
	swapFee := bps(amount, SwapFeeBPS)
	tradingFee := bps(amount, TradingFeeBPS)
	totalFee := swapFee + BridgeFee + tradingFee

	return types.CostEstimate{
		SwapFee:    swapFee,
		BridgeFee:  BridgeFee,
		TradingFee: tradingFee,
		TotalFee:   totalFee,
		NetAmount:  netAmount(amount, totalFee),
	}
}

// netAmount returns amount - totalFee as a signed value. It is exact for
// amounts up to MaxAmount and saturates above it.
func netAmount(amount, totalFee uint64) int64 {
	if amount < totalFee {
		return -int64(totalFee - amount)
	}
	diff := amount - totalFee
	if diff > MaxAmount {
		return MaxAmount
	}
	return int64(diff)
}

// bps returns floor(amount * rate / 10000) without overflowing uint64.
func bps(amount uint64, rate uint64) uint64 {
	return (amount/bpsDenominator)*rate + (amount%bpsDenominator)*rate/bpsDenominator
}

// EstimateTimeToCompletion returns the remaining-time projection for phase.
// Terminal and unknown phases map to zero.
func EstimateTimeToCompletion(phase types.ExecutionPhase) TimeEstimate {
	return timeTable[phase]
}

// FormatUSD renders an amount of smallest collateral units as dollars.
func FormatUSD(units uint64) string {
	return "$" + decimal.NewFromBigInt(new(big.Int).SetUint64(units), -CollateralDecimals).StringFixed(2)
}

// FormatSignedUSD renders a signed amount of smallest collateral units,
// e.g. a negative net amount as "-$0.05".
func FormatSignedUSD(units int64) string {
	d := decimal.New(units, -CollateralDecimals)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// ParseUSD converts a dollar string such as "12.5" into smallest units,
// truncating precision beyond CollateralDecimals. Values above MaxAmount
// are rejected rather than wrapped.
func ParseUSD(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, &types.ValidationError{Field: "amount", Message: "Amount must be greater than 0"}
	}
	units := d.Shift(CollateralDecimals).Truncate(0).BigInt()
	if !units.IsUint64() || units.Uint64() > MaxAmount {
		return 0, &types.ValidationError{Field: "amount", Message: "Amount exceeds maximum"}
	}
	return units.Uint64(), nil
}
