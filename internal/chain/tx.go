package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// transactor signs and submits contract calls on one chain. Submissions are
// serialized so pending nonces never collide.
type transactor struct {
	chain         *Chain
	key           *ecdsa.PrivateKey
	from          common.Address
	signer        gethtypes.Signer
	gasMultiplier float64
	pollInterval  time.Duration
	logger        *zap.Logger

	sendMu sync.Mutex
}

func newTransactor(
	chain *Chain,
	key *ecdsa.PrivateKey,
	from common.Address,
	gasMultiplier float64,
	pollInterval time.Duration,
	logger *zap.Logger,
) *transactor {
	return &transactor{
		chain:         chain,
		key:           key,
		from:          from,
		signer:        gethtypes.LatestSignerForChainID(chain.ChainID),
		gasMultiplier: gasMultiplier,
		pollInterval:  pollInterval,
		logger:        logger,
	}
}

// call runs a read-only contract call and unpacks the single return value.
func (t *transactor) call(
	ctx context.Context,
	contract common.Address,
	contractABI abi.ABI,
	method string,
	args ...interface{},
) (result []interface{}, err error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := t.chain.Backend.CallContract(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	result, err = contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return result, nil
}

// transact simulates, signs, submits and waits for the receipt of a
// contract call. It returns the transaction hash once mined successfully.
func (t *transactor) transact(
	ctx context.Context,
	contract common.Address,
	contractABI abi.ABI,
	method string,
	args ...interface{},
) (txHash common.Hash, err error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return txHash, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{
		From: t.from,
		To:   &contract,
		Data: data,
	}

	_, err = t.chain.Backend.CallContract(ctx, msg, nil)
	if err != nil {
		SimulationFailuresTotal.WithLabelValues(t.chain.Name, method).Inc()
		return txHash, fmt.Errorf("simulate %s: %w", method, err)
	}

	gasLimit, err := t.chain.Backend.EstimateGas(ctx, msg)
	if err != nil {
		return txHash, fmt.Errorf("estimate gas for %s: %w", method, err)
	}
	gasLimit = gasLimit * uint64(t.gasMultiplier*100+0.5) / 100

	tx, err := t.signAndSend(ctx, contract, data, gasLimit)
	if err != nil {
		return txHash, fmt.Errorf("send %s: %w", method, err)
	}
	TransactionsSentTotal.WithLabelValues(t.chain.Name, method).Inc()

	t.logger.Info("transaction-sent",
		zap.String("chain", t.chain.Name),
		zap.String("method", method),
		zap.String("tx-hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas-limit", gasLimit))

	receipt, err := t.waitMined(ctx, tx.Hash())
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait for %s: %w", method, err)
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		TransactionsRevertedTotal.WithLabelValues(t.chain.Name, method).Inc()
		return tx.Hash(), fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}

	t.logger.Info("transaction-confirmed",
		zap.String("chain", t.chain.Name),
		zap.String("method", method),
		zap.String("tx-hash", tx.Hash().Hex()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return tx.Hash(), nil
}

func (t *transactor) signAndSend(
	ctx context.Context,
	to common.Address,
	data []byte,
	gasLimit uint64,
) (*gethtypes.Transaction, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	nonce, err := t.chain.Backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := t.chain.Backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx, err := gethtypes.SignTx(gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	}), t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	err = t.chain.Backend.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// waitMined polls for the receipt until it exists or ctx is done.
func (t *transactor) waitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	start := time.Now()
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.chain.Backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			ConfirmationSeconds.WithLabelValues(t.chain.Name).Observe(time.Since(start).Seconds())
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.logger.Debug("receipt-query-failed",
				zap.String("chain", t.chain.Name),
				zap.String("tx-hash", hash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ensureAllowance approves spender for amount of token when the current
// allowance is lower.
func (t *transactor) ensureAllowance(
	ctx context.Context,
	token common.Address,
	spender common.Address,
	amount *big.Int,
) error {
	out, err := t.call(ctx, token, erc20ABI, "allowance", t.from, spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}

	current, ok := out[0].(*big.Int)
	if ok && current.Cmp(amount) >= 0 {
		return nil
	}

	t.logger.Info("approving-token",
		zap.String("chain", t.chain.Name),
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()))

	_, err = t.transact(ctx, token, erc20ABI, "approve", spender, amount)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}
