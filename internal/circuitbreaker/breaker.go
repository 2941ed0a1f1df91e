// Package circuitbreaker vetoes new executions when the wallet's USDC
// balance drops below a threshold derived from recent execution sizes.
package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/mselser95/polybridge/pkg/wallet"
	"go.uber.org/zap"
)

const (
	usdcUnit        = 1e6
	tradeWindowSize = 20
)

// BalanceFetcher fetches wallet balances. *wallet.Client implements it.
type BalanceFetcher interface {
	GetBalances(ctx context.Context, address common.Address) (*wallet.Balances, error)
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration
	TradeMultiplier float64 // Disable below avg execution size * multiplier
	MinAbsolute     float64 // Floor for the disable threshold (USDC)
	HysteresisRatio float64 // Re-enable at ratio * disable threshold
	Wallet          BalanceFetcher
	Address         common.Address
	Logger          *zap.Logger
}

// Status is a point-in-time view of the breaker.
type Status struct {
	Enabled          bool      `json:"enabled"`
	LastBalance      float64   `json:"lastBalance"`
	LastCheck        time.Time `json:"lastCheck"`
	DisableThreshold float64   `json:"disableThreshold"`
	EnableThreshold  float64   `json:"enableThreshold"`
	AvgTradeSize     float64   `json:"avgTradeSize"`
	RecentTradeCount int       `json:"recentTradeCount"`
}

// Breaker implements execution.Gate over a periodically checked balance.
type Breaker struct {
	enabled atomic.Bool

	checkInterval   time.Duration
	wallet          BalanceFetcher
	address         common.Address
	logger          *zap.Logger
	tradeMultiplier float64
	minAbsolute     float64
	hysteresisRatio float64

	mu               sync.RWMutex
	checked          bool
	lastBalance      float64
	lastCheck        time.Time
	recentTrades     []float64
	disableThreshold float64
	enableThreshold  float64
}

var _ execution.Gate = (*Breaker)(nil)

// New creates a breaker. It starts enabled until the first balance check.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		checkInterval:    cfg.CheckInterval,
		wallet:           cfg.Wallet,
		address:          cfg.Address,
		logger:           logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentTrades:     make([]float64, 0, tradeWindowSize),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}
	b.enabled.Store(true)

	Enabled.Set(1)
	DisableThreshold.Set(b.disableThreshold)
	EnableThreshold.Set(b.enableThreshold)
	AvgTradeSize.Set(0)

	return b, nil
}

// IsEnabled reports whether new executions may start.
func (b *Breaker) IsEnabled() bool {
	return b.enabled.Load()
}

// Allow vetoes an execution of amount (USDC base units) when the breaker is
// tripped or the last observed balance cannot cover it.
func (b *Breaker) Allow(amount uint64) error {
	if !b.enabled.Load() {
		BlockedTotal.WithLabelValues("tripped").Inc()
		return &types.NotReadyError{Reason: "wallet balance below circuit breaker threshold"}
	}

	b.mu.RLock()
	checked, balance := b.checked, b.lastBalance
	b.mu.RUnlock()

	if checked && float64(amount)/usdcUnit > balance {
		BlockedTotal.WithLabelValues("insufficient").Inc()
		return &types.NotReadyError{
			Reason: fmt.Sprintf("amount %.2f USDC exceeds wallet balance %.2f USDC", float64(amount)/usdcUnit, balance),
		}
	}
	return nil
}

// RecordTrade adds an execution size (USDC) to the rolling window and
// recalculates thresholds.
func (b *Breaker) RecordTrade(size float64) {
	if size <= 0 {
		b.logger.Warn("invalid-trade-size", zap.Float64("size", size))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentTrades = append(b.recentTrades, size)
	if len(b.recentTrades) > tradeWindowSize {
		b.recentTrades = b.recentTrades[1:]
	}

	avg := b.avgLocked()
	b.disableThreshold = math.Max(avg*b.tradeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	AvgTradeSize.Set(avg)
	DisableThreshold.Set(b.disableThreshold)
	EnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("thresholds-updated",
		zap.Float64("avg-trade-size", avg),
		zap.Int("trade-count", len(b.recentTrades)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// OnCompletion records the input amount of a completed execution. Register
// it with execution.Engine.OnCompletion.
func (b *Breaker) OnCompletion(event execution.CompletionEvent) {
	if event.Result == nil || event.Result.DryRun || event.Result.InputAmount == 0 {
		return
	}
	b.RecordTrade(float64(event.Result.InputAmount) / usdcUnit)
}

// CheckBalance fetches the balance and updates the enabled state with
// hysteresis.
func (b *Breaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		CheckDuration.Observe(time.Since(start).Seconds())
	}()

	balances, err := b.wallet.GetBalances(ctx, b.address)
	if err != nil {
		b.logger.Error("failed-to-check-balance",
			zap.Error(err),
			zap.String("address", b.address.Hex()))
		return fmt.Errorf("get balances: %w", err)
	}

	balance := 0.0
	if balances.USDC != nil {
		balance, _ = new(big.Float).Quo(new(big.Float).SetInt(balances.USDC), big.NewFloat(usdcUnit)).Float64()
	}

	b.mu.Lock()
	b.checked = true
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	Balance.Set(balance)

	enabled := b.enabled.Load()
	switch {
	case enabled && balance < disableThreshold:
		b.enabled.Store(false)
		Enabled.Set(0)
		StateChangesTotal.Inc()
		b.logger.Warn("circuit-breaker-disabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	case !enabled && balance >= enableThreshold:
		b.enabled.Store(true)
		Enabled.Set(1)
		StateChangesTotal.Inc()
		b.logger.Info("circuit-breaker-enabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", enabled))
	}

	return nil
}

// Start checks the balance once and then every CheckInterval until ctx is
// cancelled.
func (b *Breaker) Start(ctx context.Context) {
	b.logger.Info("circuit-breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("trade-multiplier", b.tradeMultiplier),
		zap.Float64("min-absolute", b.minAbsolute),
		zap.Float64("hysteresis-ratio", b.hysteresisRatio))

	if err := b.CheckBalance(ctx); err != nil {
		b.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *Breaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("circuit-breaker-stopped")
			return
		case <-ticker.C:
			if err := b.CheckBalance(ctx); err != nil {
				b.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns the current breaker state.
func (b *Breaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Status{
		Enabled:          b.enabled.Load(),
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeSize:     b.avgLocked(),
		RecentTradeCount: len(b.recentTrades),
	}
}

func (b *Breaker) avgLocked() float64 {
	if len(b.recentTrades) == 0 {
		return 0
	}
	sum := 0.0
	for _, size := range b.recentTrades {
		sum += size
	}
	return sum / float64(len(b.recentTrades))
}
