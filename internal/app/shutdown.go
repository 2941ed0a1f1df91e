package app

import (
	"context"
	"time"

	"github.com/mselser95/polybridge/internal/execution"
	"go.uber.org/zap"
)

// Shutdown stops tracking, interrupts retry waits, stops the HTTP server and
// releases storage and RPC connections. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("application-shutting-down")

		a.healthChecker.SetReady(false)
		a.cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if a.httpServer != nil {
			err := a.httpServer.Shutdown(shutdownCtx)
			if err != nil {
				a.logger.Error("http-server-shutdown-error", zap.Error(err))
			}
		}

		a.tracker.Shutdown()

		for _, unsubscribe := range a.unsubscribe {
			unsubscribe()
		}

		err := a.engine.Close()
		if err != nil {
			a.logger.Error("execution-engine-close-error", zap.Error(err))
		}

		a.hub.Close()

		a.wg.Wait()

		a.closeResources()

		a.logger.Info("application-shutdown-complete")
	})

	return nil
}

// closeResources releases whatever setup managed to create.
func (a *App) closeResources() {
	if a.storage != nil {
		err := a.storage.Close()
		if err != nil {
			a.logger.Error("storage-close-error", zap.Error(err))
		}
		a.storage = nil
	}

	if a.snapshotCache != nil {
		a.snapshotCache.Close()
		a.snapshotCache = nil
	}

	for _, client := range a.rpcClients {
		client.Close()
	}
	a.rpcClients = nil
}

func phaseNames(engine *execution.Engine) []string {
	phases := engine.Phases()
	names := make([]string, len(phases))
	for i, phase := range phases {
		names[i] = string(phase)
	}
	return names
}
