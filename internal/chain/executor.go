package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

const (
	defaultGasMultiplier = 1.2
	defaultPollInterval  = 2 * time.Second
	defaultSwapDeadline  = 10 * time.Minute
	defaultSlippageBPS   = 50
)

// Contracts holds the addresses the executor calls. A zero SwapRouter means
// funds already arrive as USDC and SWAPPING is a no-op.
type Contracts struct {
	SwapRouter         common.Address
	SourceToken        common.Address
	SourceUSDC         common.Address
	TokenMessenger     common.Address
	MessageTransmitter common.Address
	DestinationDomain  uint32
}

// Config holds executor configuration.
type Config struct {
	Source        *Chain
	Destination   *Chain // Optional: CLAIMING fails until set
	PrivateKey    *ecdsa.PrivateKey
	Contracts     Contracts
	Attestations  AttestationSource // Optional: AWAITING_ATTESTATION/CLAIMING fail until set
	GasMultiplier float64
	PollInterval  time.Duration
	SwapDeadline  time.Duration
	SlippageBPS   uint64
	Logger        *zap.Logger
}

// Executor implements execution.PhaseExecutor for the on-chain phases.
type Executor struct {
	source       *transactor
	destination  *transactor
	from         common.Address
	contracts    Contracts
	attestations AttestationSource
	deadline     time.Duration
	slippageBPS  uint64
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	attested map[string]*Attestation // keyed by execution ID
}

// Phases returns the phases this executor can run.
func (e *Executor) Phases() []types.ExecutionPhase {
	return []types.ExecutionPhase{
		types.PhaseSwapping,
		types.PhaseBridging,
		types.PhaseAwaitingAttestation,
		types.PhaseClaiming,
	}
}

// New creates an on-chain executor.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Source == nil || cfg.Source.Backend == nil || cfg.Source.ChainID == nil {
		return nil, errors.New("source chain is required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gasMultiplier := cfg.GasMultiplier
	if gasMultiplier < 1 {
		gasMultiplier = defaultGasMultiplier
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	deadline := cfg.SwapDeadline
	if deadline <= 0 {
		deadline = defaultSwapDeadline
	}

	slippage := cfg.SlippageBPS
	if slippage == 0 || slippage >= 10_000 {
		slippage = defaultSlippageBPS
	}

	from := crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)

	e := &Executor{
		source:       newTransactor(cfg.Source, cfg.PrivateKey, from, gasMultiplier, pollInterval, logger),
		from:         from,
		contracts:    cfg.Contracts,
		attestations: cfg.Attestations,
		deadline:     deadline,
		slippageBPS:  slippage,
		logger:       logger,
		now:          time.Now,
		attested:     make(map[string]*Attestation),
	}
	if cfg.Destination != nil && cfg.Destination.Backend != nil && cfg.Destination.ChainID != nil {
		e.destination = newTransactor(cfg.Destination, cfg.PrivateKey, from, gasMultiplier, pollInterval, logger)
	}

	return e, nil
}

// Address returns the account that signs transactions.
func (e *Executor) Address() common.Address {
	return e.from
}

// ExecutePhase implements execution.PhaseExecutor.
func (e *Executor) ExecutePhase(ctx context.Context, req execution.PhaseRequest) (string, error) {
	if req.Intent == nil || req.Run == nil {
		return "", errors.New("phase request is missing intent or run")
	}

	switch req.Phase {
	case types.PhaseSwapping:
		return e.swap(ctx, req)
	case types.PhaseBridging:
		return e.bridge(ctx, req)
	case types.PhaseAwaitingAttestation:
		return e.awaitAttestation(ctx, req)
	case types.PhaseClaiming:
		return e.claim(ctx, req)
	default:
		return "", &types.NotReadyError{Reason: fmt.Sprintf("chain executor does not handle phase %s", req.Phase)}
	}
}

func (e *Executor) swap(ctx context.Context, req execution.PhaseRequest) (string, error) {
	if e.contracts.SwapRouter == (common.Address{}) || e.contracts.SourceToken == e.contracts.SourceUSDC {
		e.logger.Info("swap-skipped",
			zap.String("execution-id", req.Run.ID),
			zap.String("reason", "source token is USDC"))
		return "", nil
	}

	amountIn := new(big.Int).SetUint64(req.Intent.Amount)
	path := []common.Address{e.contracts.SourceToken, e.contracts.SourceUSDC}
	deadline := big.NewInt(e.now().Add(e.deadline).Unix())

	quoted, err := e.quoteSwap(ctx, amountIn, path)
	if err != nil {
		return "", err
	}
	amountOutMin := applySlippage(quoted, e.slippageBPS)

	e.logger.Debug("swap-quoted",
		zap.String("execution-id", req.Run.ID),
		zap.String("amount-in", amountIn.String()),
		zap.String("quoted-out", quoted.String()),
		zap.String("amount-out-min", amountOutMin.String()))

	err = e.source.ensureAllowance(ctx, e.contracts.SourceToken, e.contracts.SwapRouter, amountIn)
	if err != nil {
		return "", fmt.Errorf("swap allowance: %w", err)
	}

	hash, err := e.source.transact(ctx, e.contracts.SwapRouter, routerABI, "swapExactTokensForTokens",
		amountIn, amountOutMin, path, e.from, deadline)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (e *Executor) bridge(ctx context.Context, req execution.PhaseRequest) (string, error) {
	amount := new(big.Int).SetUint64(bridgeAmount(req.Intent.Amount))
	if amount.Sign() == 0 {
		return "", errors.New("bridge amount is zero after swap fees")
	}

	err := e.source.ensureAllowance(ctx, e.contracts.SourceUSDC, e.contracts.TokenMessenger, amount)
	if err != nil {
		return "", fmt.Errorf("bridge allowance: %w", err)
	}

	var recipient [32]byte
	copy(recipient[12:], e.from.Bytes())

	hash, err := e.source.transact(ctx, e.contracts.TokenMessenger, tokenMessengerABI, "depositForBurn",
		amount, e.contracts.DestinationDomain, recipient, e.contracts.SourceUSDC)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// awaitAttestation blocks until Circle attests the burn and keeps the
// attestation for CLAIMING. The returned identifier is the message hash.
func (e *Executor) awaitAttestation(ctx context.Context, req execution.PhaseRequest) (string, error) {
	att, err := e.fetchAttestation(ctx, req)
	if err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(att.Message).Hex(), nil
}

func (e *Executor) claim(ctx context.Context, req execution.PhaseRequest) (string, error) {
	if e.destination == nil {
		return "", &types.NotReadyError{Reason: "destination chain not configured"}
	}

	e.mu.Lock()
	att, ok := e.attested[req.Run.ID]
	e.mu.Unlock()

	if !ok {
		var err error
		att, err = e.fetchAttestation(ctx, req)
		if err != nil {
			return "", err
		}
	}

	hash, err := e.destination.transact(ctx, e.contracts.MessageTransmitter, messageTransmitterABI, "receiveMessage",
		att.Message, att.Attestation)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	delete(e.attested, req.Run.ID)
	e.mu.Unlock()

	return hash.Hex(), nil
}

func (e *Executor) fetchAttestation(ctx context.Context, req execution.PhaseRequest) (*Attestation, error) {
	if e.attestations == nil {
		return nil, &types.NotReadyError{Reason: "attestation source not configured"}
	}

	burnTx := req.Run.Transactions.Bridge
	if burnTx == "" {
		return nil, errors.New("no bridge transaction recorded for run")
	}

	att, err := e.attestations.Attestation(ctx, burnTx)
	if err != nil {
		return nil, fmt.Errorf("fetch attestation: %w", err)
	}

	e.mu.Lock()
	e.attested[req.Run.ID] = att
	e.mu.Unlock()

	return att, nil
}

// bridgeAmount is the USDC left after the swap fee.
func bridgeAmount(amount uint64) uint64 {
	return amount - estimator.EstimateCost(amount).SwapFee
}

// quoteSwap asks the router how much USDC amountIn buys along path. The
// source token's decimals and price are whatever the pool says they are.
func (e *Executor) quoteSwap(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	result, err := e.source.call(ctx, e.contracts.SwapRouter, routerABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("swap quote: %w", err)
	}

	amounts, ok := result[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, errors.New("swap quote: unexpected getAmountsOut result")
	}

	out := amounts[len(amounts)-1]
	if out.Sign() <= 0 {
		return nil, errors.New("swap quote: router quoted zero output")
	}
	return out, nil
}

func applySlippage(amount *big.Int, slippageBPS uint64) *big.Int {
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(slippageBPS))
	cut.Quo(cut, big.NewInt(10_000))
	return cut.Sub(amount, cut)
}
