package cmd

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/mselser95/polybridge/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "estimate", "execute", "track-order", "balance"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestExecuteCommand_Flags(t *testing.T) {
	tests := []struct {
		flag      string
		shorthand string
		defValue  string
	}{
		{flag: "platform", defValue: "polymarket"},
		{flag: "market", shorthand: "m"},
		{flag: "outcome", shorthand: "o", defValue: "YES"},
		{flag: "side", shorthand: "s", defValue: "BUY"},
		{flag: "amount", shorthand: "a"},
		{flag: "price", shorthand: "p"},
		{flag: "order-type", shorthand: "t", defValue: "GTC"},
		{flag: "source-chain-id", defValue: "1"},
		{flag: "dry-run", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			flag := executeCmd.Flags().Lookup(tt.flag)
			require.NotNil(t, flag, "%s flag not defined", tt.flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestBuildUpstreamRequest(t *testing.T) {
	req, err := buildUpstreamRequest(executeFlags{
		Platform:      "Polymarket",
		Market:        "0xabc",
		Outcome:       "no",
		Side:          "sell",
		Amount:        "25.50",
		Price:         "0.55",
		OrderType:     "fok",
		SourceChainID: 42161,
		SourceToken:   "WETH",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(25_500_000), req.Amount)
	assert.Equal(t, uint64(42161), req.SourceChainID)
	assert.Equal(t, "WETH", req.SourceToken)
	assert.Equal(t, types.PlatformPolymarket, req.Trade.Platform)
	assert.Equal(t, types.OutcomeNo, req.Trade.Outcome)
	assert.Equal(t, types.SideSell, req.Trade.Side)
	assert.Equal(t, types.OrderTypeFOK, req.Trade.OrderType)
	assert.True(t, req.Trade.Price.Equal(decimal.RequireFromString("0.55")))
}

func TestBuildUpstreamRequest_InvalidInput(t *testing.T) {
	_, err := buildUpstreamRequest(executeFlags{Amount: "abc", Price: "0.5"})
	assert.ErrorContains(t, err, "parse amount")

	_, err = buildUpstreamRequest(executeFlags{Amount: "10", Price: "half"})
	assert.ErrorContains(t, err, "parse price")

	_, err = buildUpstreamRequest(executeFlags{Amount: "18446744073709.551617", Price: "0.5"})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Amount exceeds maximum", vErr.Message)
}

func TestBuildEstimate(t *testing.T) {
	out, err := buildEstimate("10", "pending")
	require.NoError(t, err)

	assert.Equal(t, uint64(10_000_000), out.Amount)
	assert.Equal(t, types.PhasePending, out.Phase)
	assert.Equal(t, uint64(140_000), out.Cost.TotalFee)
	assert.Equal(t, int64(9_860_000), out.Cost.NetAmount)
	assert.Positive(t, out.EstimatedTime.Average)
}

func TestBuildEstimate_Errors(t *testing.T) {
	_, err := buildEstimate("0", "PENDING")
	var vErr *types.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = buildEstimate("10", "NOPE")
	assert.ErrorContains(t, err, "unknown phase")
}

func TestPrintEstimate(t *testing.T) {
	out, err := buildEstimate("10", "AWAITING_ATTESTATION")
	require.NoError(t, err)

	var buf bytes.Buffer
	printEstimate(&buf, out)

	assert.Contains(t, buf.String(), "Amount:       $10.00")
	assert.Contains(t, buf.String(), "Net amount:   $9.86")
	assert.Contains(t, buf.String(), "AWAITING_ATTESTATION")

	buf.Reset()
	small, err := buildEstimate("0.05", "PENDING")
	require.NoError(t, err)
	printEstimate(&buf, small)
	assert.Contains(t, buf.String(), "Net amount:   -$0.05")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &execution.ExecutionResult{
		Success:      true,
		ExecutionID:  "exec-1",
		IntentID:     "intent-1",
		InputAmount:  10_000_000,
		OutputAmount: 9_860_000,
		TotalFees:    140_000,
		Attempts:     1,
		Duration:     2 * time.Second,
		Transactions: map[string]string{"swap": "0x01", "bridge": "0x02"},
	})

	s := buf.String()
	assert.Contains(t, s, "exec-1")
	assert.Contains(t, s, "Fees:         $0.14")
	// sorted by key
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("bridge")), bytes.Index(buf.Bytes(), []byte("swap")))
}

func TestPrintResult_DryRun(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &execution.ExecutionResult{DryRun: true, InputAmount: 1_000_000})

	assert.Contains(t, buf.String(), "Dry Run")
	assert.NotContains(t, buf.String(), "Execution:")
	assert.NotContains(t, buf.String(), "Transactions")
}

func TestPrintUpdate(t *testing.T) {
	var buf bytes.Buffer
	printUpdate(&buf, types.OrderStatusUpdate{
		OrderID:   "o-1",
		Platform:  types.PlatformKalshi,
		NewStatus: types.OrderStatusOpen,
		Fills:     []types.Trade{{ID: "f-1", Size: 5, Price: 0.42}},
		Timestamp: time.Now(),
	})

	assert.Contains(t, buf.String(), "- -> OPEN")
	assert.Contains(t, buf.String(), "fill f-1: 5.00 @ 0.4200")
}

func TestResolveAddress(t *testing.T) {
	addr, err := resolveAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), addr)

	addr, err = resolveAddress("", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", addr.Hex())

	_, err = resolveAddress("not-an-address", "")
	assert.Error(t, err)

	_, err = resolveAddress("", "")
	assert.Error(t, err)
}

func TestPrintBalances(t *testing.T) {
	var buf bytes.Buffer
	printBalances(&buf, common.HexToAddress("0x01"), &wallet.Balances{
		Native:        big.NewInt(1_500_000_000_000_000_000),
		USDC:          big.NewInt(25_500_000),
		USDCAllowance: big.NewInt(0),
	})

	assert.Contains(t, buf.String(), "Native:          1.500000")
	assert.Contains(t, buf.String(), "USDC:            25.50")
	assert.Contains(t, buf.String(), "USDC allowance:  0.00")
}
