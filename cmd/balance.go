package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polybridge/pkg/config"
	"github.com/mselser95/polybridge/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the executor wallet balances on the source chain",
	Long: `Reads the native token balance, the USDC balance and the USDC allowance
granted to the CCTP token messenger for the executor wallet.

Example:
  polybridge balance
  polybridge balance --address 0x2c7536E3605D9C16a7a3D7b1898e529396a65c23`,
	RunE: runBalance,
}

//nolint:gochecknoglobals // Cobra boilerplate
var balanceAddress string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "Wallet address (default: derived from EXECUTOR_PRIVATE_KEY)")
}

func runBalance(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SourceRPCURL == "" {
		return errors.New("SOURCE_RPC_URL is required")
	}
	if !common.IsHexAddress(cfg.USDCAddress) {
		return errors.New("USDC_ADDRESS is required")
	}

	address, err := resolveAddress(balanceAddress, cfg.ExecutorPrivateKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.SourceRPCURL)
	if err != nil {
		return fmt.Errorf("dial source RPC: %w", err)
	}
	defer client.Close()

	walletCfg := &wallet.Config{
		Backend: client,
		USDC:    common.HexToAddress(cfg.USDCAddress),
	}
	if common.IsHexAddress(cfg.TokenMessengerAddress) {
		walletCfg.Spender = common.HexToAddress(cfg.TokenMessengerAddress)
	}

	walletClient, err := wallet.NewClient(walletCfg)
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	balances, err := walletClient.GetBalances(ctx, address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	printBalances(cmd.OutOrStdout(), address, balances)
	return nil
}

// resolveAddress prefers an explicit address and otherwise derives one
// from the private key.
func resolveAddress(explicit string, privateKey string) (common.Address, error) {
	if explicit != "" {
		if !common.IsHexAddress(explicit) {
			return common.Address{}, fmt.Errorf("invalid address %q", explicit)
		}
		return common.HexToAddress(explicit), nil
	}

	if privateKey == "" {
		return common.Address{}, errors.New("either --address or EXECUTOR_PRIVATE_KEY is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func printBalances(w io.Writer, address common.Address, b *wallet.Balances) {
	fmt.Fprintf(w, "Wallet:          %s\n", address.Hex())
	fmt.Fprintf(w, "Native:          %s\n", formatUnits(b.Native, 18, 6))
	fmt.Fprintf(w, "USDC:            %s\n", formatUnits(b.USDC, 6, 2))
	fmt.Fprintf(w, "USDC allowance:  %s\n", formatUnits(b.USDCAllowance, 6, 2))
}

func formatUnits(v *big.Int, decimals int, precision int) string {
	if v == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(scale)).Text('f', precision)
}
