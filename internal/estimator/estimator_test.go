package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost_TenDollars(t *testing.T) {
	got := EstimateCost(10_000_000)

	assert.Equal(t, types.CostEstimate{
		SwapFee:    30000,
		BridgeFee:  100000,
		TradingFee: 10000,
		TotalFee:   140000,
		NetAmount:  9_860_000,
	}, got)
}

func TestEstimateCost_Invariants(t *testing.T) {
	amounts := []uint64{0, 1, 9_999, 10_000, 10_001, 50_000, 140_000, 333_333_333, 1 << 40, math.MaxInt64}

	for _, amount := range amounts {
		est := EstimateCost(amount)

		assert.Equal(t, est.TotalFee, est.SwapFee+est.BridgeFee+est.TradingFee, "amount %d", amount)
		assert.Equal(t, uint64(BridgeFee), est.BridgeFee)

		if amount < math.MaxUint64/SwapFeeBPS {
			assert.Equal(t, amount*30/10000, est.SwapFee, "swap fee for %d", amount)
			assert.Equal(t, amount*10/10000, est.TradingFee, "trading fee for %d", amount)
		}

		assert.Equal(t, int64(amount)-int64(est.TotalFee), est.NetAmount, "net for %d", amount)
	}
}

func TestEstimateCost_NegativeNetBelowFees(t *testing.T) {
	tests := []struct {
		amount uint64
		net    int64
	}{
		{0, -100_000},
		{1, -99_999},
		{50_000, -50_200},
	}

	for _, tt := range tests {
		est := EstimateCost(tt.amount)
		assert.Equal(t, tt.net, est.NetAmount, "amount %d", tt.amount)
		assert.Equal(t, int64(tt.amount)-int64(est.TotalFee), est.NetAmount)
	}
}

func TestEstimateCost_NoOverflowAtMax(t *testing.T) {
	est := EstimateCost(math.MaxUint64)

	assert.Equal(t, uint64(math.MaxUint64/10000*30+(math.MaxUint64%10000)*30/10000), est.SwapFee)
	assert.Less(t, est.TotalFee, uint64(math.MaxUint64))
	assert.Equal(t, int64(math.MaxInt64), est.NetAmount)
}

func TestEstimateTimeToCompletion(t *testing.T) {
	for _, phase := range types.PipelinePhases {
		est := EstimateTimeToCompletion(phase)
		assert.Positive(t, est.Average, "phase %s", phase)
		assert.LessOrEqual(t, est.Min, est.Average, "phase %s", phase)
		assert.LessOrEqual(t, est.Average, est.Max, "phase %s", phase)
	}

	for _, phase := range []types.ExecutionPhase{types.PhaseCompleted, types.PhaseFailed, types.PhaseCancelled} {
		assert.Equal(t, TimeEstimate{}, EstimateTimeToCompletion(phase), "terminal phase %s", phase)
	}
}

func TestEstimateTimeToCompletion_DecreasesAlongPipeline(t *testing.T) {
	prev := time.Duration(math.MaxInt64)
	for _, phase := range types.PipelinePhases {
		avg := EstimateTimeToCompletion(phase).Average
		assert.Less(t, avg, prev, "phase %s should have less remaining time", phase)
		prev = avg
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		units uint64
		want  string
	}{
		{0, "$0.00"},
		{100_000, "$0.10"},
		{9_860_000, "$9.86"},
		{1_234_567_890, "$1234.57"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(tt.units))
	}
}

func TestParseUSD(t *testing.T) {
	got, err := ParseUSD("12.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(12_500_000), got)

	got, err = ParseUSD("0.0000019")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)

	_, err = ParseUSD("-1")
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = ParseUSD("abc")
	require.Error(t, err)
}

func TestParseUSD_RejectsOversizedAmounts(t *testing.T) {
	for _, raw := range []string{
		"18446744073709.551617", // 2^64 + 1 units, wraps to 1 in uint64
		"9223372036854.775808",  // MaxInt64 + 1 units
		"1e30",
	} {
		_, err := ParseUSD(raw)
		var vErr *types.ValidationError
		require.ErrorAs(t, err, &vErr, "input %s", raw)
		assert.Equal(t, "Amount exceeds maximum", vErr.Message)
	}

	got, err := ParseUSD("9223372036854.775807")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxInt64), got)
}

func TestFormatSignedUSD(t *testing.T) {
	assert.Equal(t, "$9.86", FormatSignedUSD(9_860_000))
	assert.Equal(t, "$0.00", FormatSignedUSD(0))
	assert.Equal(t, "-$0.05", FormatSignedUSD(-50_200))
}
