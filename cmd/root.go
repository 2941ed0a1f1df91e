package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/polybridge/internal/app"
	"github.com/mselser95/polybridge/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polybridge",
	Short: "Cross-chain prediction market execution and order tracking",
	Long: `polybridge turns funds held on a source chain into a prediction market
trade: it swaps into USDC, bridges through CCTP, waits for Circle's
attestation, claims on the destination chain and places the order on
Polymarket. It also tracks venue orders and notifies on fills.

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A missing .env is fine; the environment may be set directly.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// buildApp loads configuration and constructs the application. The caller
// owns the returned logger and must call Shutdown on the app.
func buildApp(opts *app.Options) (*app.App, *config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("create app: %w", err)
	}

	return application, cfg, logger, nil
}
