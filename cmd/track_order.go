package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mselser95/polybridge/internal/notify"
	"github.com/mselser95/polybridge/internal/tracker"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var trackOrderCmd = &cobra.Command{
	Use:   "track-order",
	Short: "Follow a venue order until it reaches a terminal status",
	Long: `Polls an order on Polymarket or Kalshi and prints every status change
with its fills. Stops on a terminal status, on --timeout, or on Ctrl+C.

Example:
  polybridge track-order --platform polymarket --order-id 0xabc --interval 2s`,
	RunE: runTrackOrder,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	trackPlatform string
	trackOrderID  string
	trackInterval time.Duration
	trackTimeout  time.Duration
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(trackOrderCmd)

	trackOrderCmd.Flags().StringVar(&trackPlatform, "platform", string(types.PlatformPolymarket), "Venue (polymarket, kalshi)")
	trackOrderCmd.Flags().StringVar(&trackOrderID, "order-id", "", "Order ID on the venue")
	trackOrderCmd.Flags().DurationVar(&trackInterval, "interval", 0, "Polling interval (default TRACKER_POLL_INTERVAL)")
	trackOrderCmd.Flags().DurationVar(&trackTimeout, "timeout", 0, "Stop after this long (default TRACKER_TIMEOUT)")
	_ = trackOrderCmd.MarkFlagRequired("order-id")
}

func runTrackOrder(cmd *cobra.Command, _ []string) error {
	application, _, logger, err := buildApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	sub, err := application.Tracker().TrackOrder(
		types.Platform(strings.ToLower(trackPlatform)),
		trackOrderID,
		tracker.TrackOptions{PollingInterval: trackInterval, Timeout: trackTimeout},
	)
	if err != nil {
		return fmt.Errorf("track order: %w", err)
	}

	out := cmd.OutOrStdout()
	sub.OnStatusUpdate(func(update types.OrderStatusUpdate) {
		printUpdate(out, update)
	})
	sub.OnError(func(err error) {
		fmt.Fprintf(out, "[%s] poll error: %v\n", time.Now().Format("15:04:05"), err)
	})

	fmt.Fprintf(out, "Tracking %s order %s (subscription %s)\n", sub.Platform(), sub.OrderID(), sub.ID())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sub.Done():
		info := sub.Info()
		fmt.Fprintf(out, "Tracking stopped, last status: %s\n", displayStatus(info.LastStatus))
	case <-sigChan:
		sub.Stop()
		fmt.Fprintf(out, "Tracking cancelled\n")
	}

	return nil
}

func printUpdate(w io.Writer, update types.OrderStatusUpdate) {
	fmt.Fprintf(w, "[%s] %s -> %s\n",
		update.Timestamp.Format("15:04:05"),
		displayStatus(update.PreviousStatus),
		update.NewStatus)

	if n, ok := notify.Render(&update); ok {
		fmt.Fprintf(w, "  %s\n", n.Message)
	}

	for _, fill := range update.Fills {
		fmt.Fprintf(w, "  fill %s: %.2f @ %.4f\n", fill.ID, fill.Size, fill.Price)
	}
}

func displayStatus(status types.OrderStatus) string {
	if status == "" {
		return "-"
	}
	return string(status)
}
