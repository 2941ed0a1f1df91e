package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the full pipeline for one trade",
	Long: `Creates a trade intent and runs every configured phase (swap, bridge,
attestation, claim, trade), retrying the whole flow with exponential backoff.

Use --dry-run to print the fee and time projection without touching any chain.

Example:
  polybridge execute --market 0xabc --outcome YES --side BUY --amount 25 --price 0.55
  polybridge execute --market 0xabc --amount 25 --price 0.55 --dry-run`,
	RunE: runExecute,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	execPlatform      string
	execMarket        string
	execOutcome       string
	execSide          string
	execAmount        string
	execPrice         string
	execOrderType     string
	execSourceChainID uint64
	execSourceToken   string
	execDryRun        bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringVar(&execPlatform, "platform", string(types.PlatformPolymarket), "Venue (polymarket, kalshi)")
	executeCmd.Flags().StringVarP(&execMarket, "market", "m", "", "Market ID on the venue")
	executeCmd.Flags().StringVarP(&execOutcome, "outcome", "o", string(types.OutcomeYes), "Outcome (YES, NO)")
	executeCmd.Flags().StringVarP(&execSide, "side", "s", string(types.SideBuy), "Side (BUY, SELL)")
	executeCmd.Flags().StringVarP(&execAmount, "amount", "a", "", "Amount in USD (e.g. 25.50)")
	executeCmd.Flags().StringVarP(&execPrice, "price", "p", "", "Limit price between 0 and 1")
	executeCmd.Flags().StringVarP(&execOrderType, "order-type", "t", string(types.OrderTypeGTC), "Order type (GTC, FOK, IOC)")
	executeCmd.Flags().Uint64Var(&execSourceChainID, "source-chain-id", 1, "Chain ID the funds start on")
	executeCmd.Flags().StringVar(&execSourceToken, "source-token", "", "Token the funds are held in")
	executeCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Only compute fees and timing")
	_ = executeCmd.MarkFlagRequired("market")
	_ = executeCmd.MarkFlagRequired("amount")
	_ = executeCmd.MarkFlagRequired("price")
}

type executeFlags struct {
	Platform      string
	Market        string
	Outcome       string
	Side          string
	Amount        string
	Price         string
	OrderType     string
	SourceChainID uint64
	SourceToken   string
}

func buildUpstreamRequest(f executeFlags) (execution.UpstreamRequest, error) {
	amount, err := estimator.ParseUSD(f.Amount)
	if err != nil {
		return execution.UpstreamRequest{}, fmt.Errorf("parse amount: %w", err)
	}

	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return execution.UpstreamRequest{}, fmt.Errorf("parse price: %w", err)
	}

	return execution.UpstreamRequest{
		SourceChainID: f.SourceChainID,
		SourceToken:   f.SourceToken,
		Amount:        amount,
		Trade: execution.TradeDetails{
			Platform:  types.Platform(strings.ToLower(f.Platform)),
			MarketID:  f.Market,
			Outcome:   types.Outcome(strings.ToUpper(f.Outcome)),
			Side:      types.Side(strings.ToUpper(f.Side)),
			Price:     price,
			OrderType: types.OrderType(strings.ToUpper(f.OrderType)),
		},
	}, nil
}

func runExecute(cmd *cobra.Command, _ []string) error {
	req, err := buildUpstreamRequest(executeFlags{
		Platform:      execPlatform,
		Market:        execMarket,
		Outcome:       execOutcome,
		Side:          execSide,
		Amount:        execAmount,
		Price:         execPrice,
		OrderType:     execOrderType,
		SourceChainID: execSourceChainID,
		SourceToken:   execSourceToken,
	})
	if err != nil {
		return err
	}

	application, _, logger, err := buildApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	out := cmd.OutOrStdout()
	unsubscribe := application.Engine().OnProgress(func(event execution.ProgressEvent) {
		fmt.Fprintf(out, "[%s] %s\n", event.Timestamp.Format("15:04:05"), event.Phase)
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := application.Engine().ExecuteFromUpstreamTokens(ctx, req, execution.UpstreamOptions{DryRun: execDryRun})
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	printResult(out, result)
	return nil
}

func printResult(w io.Writer, result *execution.ExecutionResult) {
	if result.DryRun {
		fmt.Fprintf(w, "\n=== Dry Run ===\n\n")
	} else {
		fmt.Fprintf(w, "\n=== Execution Complete ===\n\n")
		fmt.Fprintf(w, "Execution:    %s\n", result.ExecutionID)
		fmt.Fprintf(w, "Intent:       %s\n", result.IntentID)
		fmt.Fprintf(w, "Attempts:     %d\n", result.Attempts)
		fmt.Fprintf(w, "Duration:     %s\n", result.Duration)
	}

	fmt.Fprintf(w, "Input:        %s\n", estimator.FormatUSD(result.InputAmount))
	fmt.Fprintf(w, "Fees:         %s\n", estimator.FormatUSD(result.TotalFees))
	fmt.Fprintf(w, "Output:       %s\n", estimator.FormatSignedUSD(result.OutputAmount))
	fmt.Fprintf(w, "ETA:          ~%s\n", result.EstimatedTime.Average)

	if len(result.Transactions) == 0 {
		return
	}

	keys := make([]string, 0, len(result.Transactions))
	for k := range result.Transactions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\nTransactions:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-8s %s\n", k, result.Transactions[k])
	}
}
