package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleStorage implements Storage by pretty-printing to a writer.
type ConsoleStorage struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to out.
func NewConsoleStorageWriter(out io.Writer, logger *zap.Logger) *ConsoleStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    out,
		logger: logger,
	}
}

// LogStatusChange prints an order status transition.
func (c *ConsoleStorage) LogStatusChange(_ context.Context, change StatusChange) error {
	previous := string(change.PreviousStatus)
	if previous == "" {
		previous = "-"
	}

	var b strings.Builder
	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintf(&b, "ORDER STATUS CHANGED\n")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Order:    %s\n", change.OrderID)
	fmt.Fprintf(&b, "Platform: %s\n", change.Platform)
	fmt.Fprintf(&b, "Market:   %s\n", change.Order.MarketID)
	fmt.Fprintf(&b, "Status:   %s -> %s\n", previous, change.NewStatus)
	fmt.Fprintf(&b, "Filled:   %.2f / %.2f @ %.4f\n", change.Order.SizeFilled, change.Order.Size, change.Order.Price)
	if change.FillCount > 0 {
		fmt.Fprintf(&b, "Fills:    %d\n", change.FillCount)
	}
	fmt.Fprintf(&b, "Time:     %s\n", change.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, rule)

	return c.write(b.String())
}

// ArchiveRun prints a finished or failed execution run.
func (c *ConsoleStorage) ArchiveRun(_ context.Context, run *types.ExecutionRun) error {
	if run == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintln(&b, "\n"+rule)
	if run.Error != "" {
		fmt.Fprintf(&b, "EXECUTION FAILED\n")
	} else {
		fmt.Fprintf(&b, "EXECUTION %s\n", run.CurrentPhase)
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Execution: %s\n", run.ID)
	fmt.Fprintf(&b, "Intent:    %s\n", run.IntentID)
	fmt.Fprintf(&b, "Phase:     %s\n", run.CurrentPhase)
	fmt.Fprintf(&b, "Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Fprintf(&b, "Duration:  %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:     %s\n", run.Error)
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "PHASES\n")
	for _, phase := range run.CompletedPhases {
		fmt.Fprintf(&b, "  %-22s %s\n", phase, run.PhaseDurations[phase].Round(time.Millisecond))
	}

	txs := run.Transactions.Map()
	if len(txs) > 0 {
		fmt.Fprintf(&b, "TRANSACTIONS\n")
		keys := make([]string, 0, len(txs))
		for k := range txs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-7s %s\n", k+":", txs[k])
		}
	}
	fmt.Fprintln(&b, rule)

	return c.write(b.String())
}

func (c *ConsoleStorage) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.out, s); err != nil {
		return fmt.Errorf("write console: %w", err)
	}
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
