package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show fees and expected time for an amount",
	Long: `Computes the fee breakdown (swap, bridge, trading) and the remaining-time
projection for moving an amount through the pipeline. Nothing is executed.

Example:
  polybridge estimate --amount 25.50
  polybridge estimate --amount 25.50 --phase AWAITING_ATTESTATION --json`,
	RunE: runEstimate,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	estimateAmount string
	estimatePhase  string
	estimateJSON   bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVarP(&estimateAmount, "amount", "a", "", "Amount in USD (e.g. 25.50)")
	estimateCmd.Flags().StringVarP(&estimatePhase, "phase", "p", string(types.PhasePending), "Phase to project remaining time from")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "Print JSON instead of a table")
	_ = estimateCmd.MarkFlagRequired("amount")
}

type estimateOutput struct {
	Amount        uint64                 `json:"amount"`
	Cost          types.CostEstimate     `json:"cost"`
	Phase         types.ExecutionPhase   `json:"phase"`
	EstimatedTime estimator.TimeEstimate `json:"estimatedTime"`
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	out, err := buildEstimate(estimateAmount, estimatePhase)
	if err != nil {
		return err
	}

	if estimateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printEstimate(cmd.OutOrStdout(), out)
	return nil
}

func buildEstimate(amountStr string, phaseStr string) (*estimateOutput, error) {
	amount, err := estimator.ParseUSD(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if amount == 0 {
		return nil, &types.ValidationError{Field: "amount", Message: "Amount must be greater than 0"}
	}

	phase, ok := types.ParsePhase(strings.ToUpper(phaseStr))
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", phaseStr)
	}

	return &estimateOutput{
		Amount:        amount,
		Cost:          estimator.EstimateCost(amount),
		Phase:         phase,
		EstimatedTime: estimator.EstimateTimeToCompletion(phase),
	}, nil
}

func printEstimate(w io.Writer, out *estimateOutput) {
	fmt.Fprintf(w, "=== Cost Estimate ===\n\n")
	fmt.Fprintf(w, "Amount:       %s\n", estimator.FormatUSD(out.Amount))
	fmt.Fprintf(w, "Swap fee:     %s\n", estimator.FormatUSD(out.Cost.SwapFee))
	fmt.Fprintf(w, "Bridge fee:   %s\n", estimator.FormatUSD(out.Cost.BridgeFee))
	fmt.Fprintf(w, "Trading fee:  %s\n", estimator.FormatUSD(out.Cost.TradingFee))
	fmt.Fprintf(w, "Total fees:   %s\n", estimator.FormatUSD(out.Cost.TotalFee))
	fmt.Fprintf(w, "Net amount:   %s\n\n", estimator.FormatSignedUSD(out.Cost.NetAmount))

	fmt.Fprintf(w, "Time remaining from %s:\n", out.Phase)
	fmt.Fprintf(w, "  min %s / avg %s / max %s\n",
		out.EstimatedTime.Min, out.EstimatedTime.Average, out.EstimatedTime.Max)
}
