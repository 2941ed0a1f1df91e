package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polybridge/internal/chain"
	"github.com/mselser95/polybridge/internal/circuitbreaker"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/internal/intents"
	"github.com/mselser95/polybridge/internal/notify"
	"github.com/mselser95/polybridge/internal/platform"
	"github.com/mselser95/polybridge/internal/platform/kalshi"
	"github.com/mselser95/polybridge/internal/platform/polymarket"
	"github.com/mselser95/polybridge/internal/storage"
	"github.com/mselser95/polybridge/internal/tracker"
	"github.com/mselser95/polybridge/pkg/cache"
	"github.com/mselser95/polybridge/pkg/config"
	"github.com/mselser95/polybridge/pkg/healthprobe"
	"github.com/mselser95/polybridge/pkg/httpserver"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/mselser95/polybridge/pkg/wallet"
	"go.uber.org/zap"
)

// Options holds application options.
type Options struct {
	// Storage overrides the storage built from config.
	Storage storage.Storage
	// Sources overrides the platform registry built from config.
	Sources *platform.Registry
	// Executors are registered on the phase router after the built-in ones.
	Executors []PhaseExecutor
}

// PhaseExecutor is an executor that declares which phases it handles.
type PhaseExecutor interface {
	execution.PhaseExecutor
	Phases() []types.ExecutionPhase
}

// New creates a new application instance. Nothing runs until Run.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		registry:      intents.NewRegistry(logger),
		router:        execution.NewPhaseRouter(),
		ctx:           ctx,
		cancel:        cancel,
	}

	err := a.setup(opts)
	if err != nil {
		a.closeResources()
		cancel()
		return nil, err
	}

	return a, nil
}

func (a *App) setup(opts *Options) error {
	var err error

	a.storage = opts.Storage
	if a.storage == nil {
		a.storage, err = setupStorage(a.ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("setup storage: %w", err)
		}
	}

	a.snapshotCache, err = setupSnapshotCache(a.logger)
	if err != nil {
		return fmt.Errorf("setup snapshot cache: %w", err)
	}

	a.sources = opts.Sources
	if a.sources == nil {
		a.sources = setupSources(a.cfg, a.logger)
	}

	a.hub = notify.NewHub(&notify.HubConfig{SendBuffer: a.cfg.NotifyBufferSize, Logger: a.logger})

	a.tracker, err = tracker.New(&tracker.Config{
		Sources:                a.sources,
		StatusLog:              a.storage,
		Notifier:               notify.Multi{notify.NewLogNotifier(a.logger), a.hub},
		SnapshotCache:          a.snapshotCache,
		SnapshotTTL:            a.cfg.TrackerSnapshotTTL,
		MaxSubscriptions:       a.cfg.TrackerMaxSubscriptions,
		DefaultPollingInterval: a.cfg.TrackerPollInterval,
		DefaultTimeout:         a.cfg.TrackerTimeout,
		RequestTimeout:         a.cfg.TrackerRequestTimeout,
		Logger:                 a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup tracker: %w", err)
	}

	err = a.setupExecutors(opts.Executors)
	if err != nil {
		return err
	}

	err = a.setupEngine()
	if err != nil {
		return fmt.Errorf("setup engine: %w", err)
	}

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		Executions:    a.engine,
		Subscriptions: a.tracker,
		Breaker:       a.breakerStatus(),
		Stream:        a.hub,
	})

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupSnapshotCache(logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "order-snapshots",
		NumCounters: 10000, // 10x the subscription cap with headroom
		MaxCost:     1000,
		Logger:      logger,
	})
}

// setupSources registers Polymarket eagerly and Kalshi lazily, so a missing
// or unreadable Kalshi key only fails Kalshi subscriptions.
func setupSources(cfg *config.Config, logger *zap.Logger) *platform.Registry {
	registry := platform.NewRegistry()

	registry.Register(types.PlatformPolymarket, polymarket.NewClient(&polymarket.Config{
		BaseURL: cfg.PolymarketCLOBURL,
		Credentials: polymarket.Credentials{
			APIKey:     cfg.PolymarketAPIKey,
			Secret:     cfg.PolymarketSecret,
			Passphrase: cfg.PolymarketPassphrase,
			Address:    polymarketAddress(cfg),
		},
		Logger: logger,
	}))

	registry.RegisterFactory(types.PlatformKalshi, func() (platform.OrderSource, error) {
		if cfg.KalshiAPIKey == "" || cfg.KalshiPrivateKeyPath == "" {
			return nil, fmt.Errorf("KALSHI_API_KEY and KALSHI_PRIVATE_KEY_PATH are required")
		}
		pemBytes, err := os.ReadFile(cfg.KalshiPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read kalshi private key: %w", err)
		}
		key, err := kalshi.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, err
		}
		return kalshi.NewClient(&kalshi.Config{
			BaseURL:    cfg.KalshiAPIURL,
			APIKey:     cfg.KalshiAPIKey,
			PrivateKey: key,
			Logger:     logger,
		})
	})

	return registry
}

// polymarketAddress is the L2 auth address: the proxy wallet when set,
// otherwise the signer.
func polymarketAddress(cfg *config.Config) string {
	if cfg.PolymarketProxyAddress != "" {
		return cfg.PolymarketProxyAddress
	}
	key, err := parsePrivateKey(cfg.PolymarketPrivateKey)
	if err != nil {
		return ""
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// setupExecutors registers the on-chain executor, the Polymarket trader and
// any extra executors on the phase router, and builds the circuit breaker.
func (a *App) setupExecutors(extra []PhaseExecutor) error {
	var sourceClient *ethclient.Client
	var executorAddress common.Address

	if a.cfg.ChainEnabled() {
		chainExecutor, client, err := a.setupChainExecutor()
		if err != nil {
			return fmt.Errorf("setup chain executor: %w", err)
		}
		a.router.Register(chainExecutor, chainExecutor.Phases()...)
		sourceClient = client
		executorAddress = chainExecutor.Address()
	} else {
		a.logger.Info("chain-executor-disabled",
			zap.String("reason", "SOURCE_RPC_URL or EXECUTOR_PRIVATE_KEY not set"))
	}

	if a.cfg.PolymarketTradingEnabled() {
		trader, err := a.setupTrader()
		if err != nil {
			return fmt.Errorf("setup polymarket trader: %w", err)
		}
		a.router.Register(trader, trader.Phases()...)
	}

	for _, executor := range extra {
		a.router.Register(executor, executor.Phases()...)
	}

	if a.cfg.CircuitBreakerEnabled {
		err := a.setupBreaker(sourceClient, executorAddress)
		if err != nil {
			return fmt.Errorf("setup circuit breaker: %w", err)
		}
	}

	return nil
}

func (a *App) setupChainExecutor() (*chain.Executor, *ethclient.Client, error) {
	key, err := parsePrivateKey(a.cfg.ExecutorPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	source, sourceClient, err := chain.Dial(a.ctx, "source", a.cfg.SourceRPCURL)
	if err != nil {
		return nil, nil, err
	}
	a.rpcClients = append(a.rpcClients, sourceClient)
	a.healthChecker.AddCheck("source-rpc", func(ctx context.Context) error {
		_, err := sourceClient.BlockNumber(ctx)
		return err
	})

	var destination *chain.Chain
	if a.cfg.DestinationRPCURL != "" {
		var destClient *ethclient.Client
		destination, destClient, err = chain.Dial(a.ctx, "destination", a.cfg.DestinationRPCURL)
		if err != nil {
			return nil, nil, err
		}
		a.rpcClients = append(a.rpcClients, destClient)
	}

	executor, err := chain.New(&chain.Config{
		Source:      source,
		Destination: destination,
		PrivateKey:  key,
		Contracts: chain.Contracts{
			SwapRouter:         common.HexToAddress(a.cfg.SwapRouterAddress),
			SourceToken:        common.HexToAddress(a.cfg.SourceTokenAddress),
			SourceUSDC:         common.HexToAddress(a.cfg.USDCAddress),
			TokenMessenger:     common.HexToAddress(a.cfg.TokenMessengerAddress),
			MessageTransmitter: common.HexToAddress(a.cfg.MessageTransmitterAddress),
			DestinationDomain:  a.cfg.DestinationDomain,
		},
		Attestations: chain.NewIrisClient(&chain.IrisConfig{
			BaseURL:      a.cfg.IrisAPIURL,
			SourceDomain: a.cfg.SourceDomain,
			Logger:       a.logger,
		}),
		GasMultiplier: a.cfg.GasMultiplier,
		SlippageBPS:   a.cfg.SlippageBPS,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Info("chain-executor-configured",
		zap.String("address", executor.Address().Hex()),
		zap.String("source-chain-id", source.ChainID.String()),
		zap.Bool("claiming-enabled", destination != nil))

	return executor, sourceClient, nil
}

func (a *App) setupTrader() (*polymarket.Trader, error) {
	key, err := parsePrivateKey(a.cfg.PolymarketPrivateKey)
	if err != nil {
		return nil, err
	}

	client := polymarket.NewClient(&polymarket.Config{
		BaseURL: a.cfg.PolymarketCLOBURL,
		Credentials: polymarket.Credentials{
			APIKey:     a.cfg.PolymarketAPIKey,
			Secret:     a.cfg.PolymarketSecret,
			Passphrase: a.cfg.PolymarketPassphrase,
			Address:    polymarketAddress(a.cfg),
		},
		Logger: a.logger,
	})

	return polymarket.NewTrader(&polymarket.TraderConfig{
		Client:        client,
		PrivateKey:    key,
		ProxyAddress:  a.cfg.PolymarketProxyAddress,
		SignatureType: a.cfg.PolymarketSignatureType,
		ChainID:       big.NewInt(polymarket.PolygonChainID),
		Logger:        a.logger,
	})
}

func (a *App) setupBreaker(sourceClient *ethclient.Client, address common.Address) error {
	if sourceClient == nil {
		client, err := ethclient.DialContext(a.ctx, a.cfg.SourceRPCURL)
		if err != nil {
			return fmt.Errorf("dial source RPC: %w", err)
		}
		a.rpcClients = append(a.rpcClients, client)
		sourceClient = client
	}
	if address == (common.Address{}) {
		key, err := parsePrivateKey(a.cfg.ExecutorPrivateKey)
		if err != nil {
			return err
		}
		address = crypto.PubkeyToAddress(key.PublicKey)
	}

	walletClient, err := wallet.NewClient(&wallet.Config{
		Backend: sourceClient,
		USDC:    common.HexToAddress(a.cfg.USDCAddress),
		Spender: common.HexToAddress(a.cfg.TokenMessengerAddress),
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	a.breaker, err = circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   a.cfg.CircuitBreakerCheckInterval,
		TradeMultiplier: a.cfg.CircuitBreakerTradeMultiplier,
		MinAbsolute:     a.cfg.CircuitBreakerMinAbsolute,
		HysteresisRatio: a.cfg.CircuitBreakerHysteresisRatio,
		Wallet:          walletClient,
		Address:         address,
		Logger:          a.logger,
	})
	return err
}

func (a *App) setupEngine() error {
	cfg := &execution.Config{
		Registry:   a.registry,
		Archive:    a.storage,
		Logger:     a.logger,
		MaxRetries: a.cfg.ExecutionMaxRetries,
		RetryDelay: a.cfg.ExecutionRetryDelay,
		Phases:     a.cfg.ExecutionPhases,
	}

	var unhandled []string
	for _, phase := range a.cfg.ExecutionPhases {
		if !a.router.Handles(phase) {
			unhandled = append(unhandled, string(phase))
		}
	}
	// With no executor at all the engine reports NotReady instead of
	// failing each phase through the router.
	if len(unhandled) < len(a.cfg.ExecutionPhases) {
		cfg.Executor = a.router
	}
	if len(unhandled) > 0 {
		a.logger.Warn("execution-phases-without-executor",
			zap.Strings("phases", unhandled))
	}

	if a.breaker != nil {
		cfg.Gate = a.breaker
	}

	engine, err := execution.New(cfg)
	if err != nil {
		return err
	}
	a.engine = engine

	if a.breaker != nil {
		a.unsubscribe = append(a.unsubscribe, engine.OnCompletion(a.breaker.OnCompletion))
	}
	a.unsubscribe = append(a.unsubscribe, engine.OnProgress(func(event execution.ProgressEvent) {
		a.logger.Debug("execution-progress",
			zap.String("execution-id", event.ExecutionID),
			zap.String("phase", string(event.Phase)))
	}))

	return nil
}

func (a *App) breakerStatus() httpserver.BreakerStatus {
	if a.breaker == nil {
		return nil
	}
	return a.breaker
}
