// Package chain performs the on-chain actions of the execution pipeline:
// swapping into USDC, burning it through CCTP, waiting for Circle's
// attestation and minting on the destination chain.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of *ethclient.Client the executor needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Chain is one EVM network the executor transacts on.
type Chain struct {
	Name    string
	ChainID *big.Int
	Backend Backend
}

// Dial connects to rpcURL and reads the chain ID from the node.
func Dial(ctx context.Context, name string, rpcURL string) (*Chain, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s RPC: %w", name, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("get %s chain ID: %w", name, err)
	}

	return &Chain{Name: name, ChainID: chainID, Backend: client}, client, nil
}
