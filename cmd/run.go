package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the service",
	Long: `Starts polybridge as a long-running service, which will:
1. Serve /metrics, /health and /ready
2. Serve read-only queries under /api (intents, executions, subscriptions)
3. Stream order notifications to websocket clients on /ws
4. Monitor the wallet balance when the circuit breaker is enabled`,
	RunE: runService,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(_ *cobra.Command, _ []string) error {
	application, _, logger, err := buildApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
