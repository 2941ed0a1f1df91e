// Package wallet reads on-chain balances for the execution wallet.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const erc20ReadABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

//nolint:gochecknoglobals // parsed once, read-only
var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 ABI: %v", err))
	}
	return parsed
}()

// Backend is the subset of *ethclient.Client used for balance reads.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Balances holds on-chain token balances.
type Balances struct {
	Native        *big.Int // in wei
	USDC          *big.Int // in 6-decimal units
	USDCAllowance *big.Int // in 6-decimal units, zero when no spender is configured
}

// Config holds configuration for the wallet client.
type Config struct {
	Backend Backend
	USDC    common.Address
	Spender common.Address // Optional: contract whose allowance is reported
	Logger  *zap.Logger
}

// Client reads wallet balances through a Backend.
type Client struct {
	backend Backend
	usdc    common.Address
	spender common.Address
	logger  *zap.Logger
}

// NewClient creates a new wallet client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if cfg.USDC == (common.Address{}) {
		return nil, errors.New("USDC address is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		backend: cfg.Backend,
		usdc:    cfg.USDC,
		spender: cfg.Spender,
		logger:  logger,
	}, nil
}

// GetBalances fetches native, USDC and allowance balances for address.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (*Balances, error) {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	native, err := c.backend.BalanceAt(ctx, address, nil)
	if err != nil {
		UpdateErrorsTotal.Inc()
		return nil, fmt.Errorf("get native balance: %w", err)
	}

	usdc, err := c.callUint(ctx, "balanceOf", address)
	if err != nil {
		UpdateErrorsTotal.Inc()
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	allowance := new(big.Int)
	if c.spender != (common.Address{}) {
		allowance, err = c.callUint(ctx, "allowance", address, c.spender)
		if err != nil {
			UpdateErrorsTotal.Inc()
			return nil, fmt.Errorf("get USDC allowance: %w", err)
		}
	}

	NativeBalance.Set(weiToFloat(native, 18))
	USDCBalance.Set(weiToFloat(usdc, 6))
	USDCAllowance.Set(weiToFloat(allowance, 6))
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	c.logger.Debug("wallet-balances-fetched",
		zap.String("address", address.Hex()),
		zap.String("usdc", usdc.String()),
		zap.String("native", native.String()))

	return &Balances{
		Native:        native,
		USDC:          usdc,
		USDCAllowance: allowance,
	}, nil
}

func (c *Client) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := c.usdc
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return value, nil
}

func weiToFloat(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	).Float64()
	return f
}
