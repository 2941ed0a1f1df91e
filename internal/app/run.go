package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the background components and the HTTP server and blocks
// until a shutdown signal arrives.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Strings("phases", phaseNames(a.engine)),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.Start()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", a.httpServer.Addr()))

	return a.waitForShutdown()
}

// Start launches the HTTP server and the circuit breaker monitor without
// blocking.
func (a *App) Start() {
	a.wg.Add(1)
	go a.runHTTPServer()

	if a.breaker != nil {
		a.breaker.Start(a.ctx)
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		a.cancel()
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
