package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Execution
	ExecutionMaxRetries int
	ExecutionRetryDelay time.Duration
	ExecutionPhases     []types.ExecutionPhase

	// Order tracking
	TrackerMaxSubscriptions int
	TrackerPollInterval     time.Duration
	TrackerTimeout          time.Duration
	TrackerRequestTimeout   time.Duration
	TrackerSnapshotTTL      time.Duration
	NotifyBufferSize        int

	// Polymarket
	PolymarketCLOBURL       string
	PolymarketAPIKey        string
	PolymarketSecret        string
	PolymarketPassphrase    string
	PolymarketPrivateKey    string
	PolymarketProxyAddress  string
	PolymarketSignatureType int

	// Kalshi
	KalshiAPIURL         string
	KalshiAPIKey         string
	KalshiPrivateKeyPath string

	// Chain
	ExecutorPrivateKey        string
	SourceRPCURL              string
	DestinationRPCURL         string
	SwapRouterAddress         string
	SourceTokenAddress        string
	USDCAddress               string
	TokenMessengerAddress     string
	MessageTransmitterAddress string
	SourceDomain              uint32
	DestinationDomain         uint32
	GasMultiplier             float64
	SlippageBPS               uint64
	IrisAPIURL                string

	// Circuit breaker
	CircuitBreakerEnabled         bool
	CircuitBreakerCheckInterval   time.Duration
	CircuitBreakerTradeMultiplier float64
	CircuitBreakerMinAbsolute     float64
	CircuitBreakerHysteresisRatio float64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	phases, err := parsePhases(getEnvOrDefault("EXECUTION_PHASES", "SWAPPING,BRIDGING"))
	if err != nil {
		return nil, fmt.Errorf("parse EXECUTION_PHASES: %w", err)
	}

	polymarketKey := os.Getenv("POLYMARKET_PRIVATE_KEY")

	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		ExecutionMaxRetries: getIntOrDefault("EXECUTION_MAX_RETRIES", 3),
		ExecutionRetryDelay: getDurationOrDefault("EXECUTION_RETRY_DELAY", 5*time.Second),
		ExecutionPhases:     phases,

		TrackerMaxSubscriptions: getIntOrDefault("TRACKER_MAX_SUBSCRIPTIONS", 100),
		TrackerPollInterval:     getDurationOrDefault("TRACKER_POLL_INTERVAL", 2*time.Second),
		TrackerTimeout:          getDurationOrDefault("TRACKER_TIMEOUT", time.Hour),
		TrackerRequestTimeout:   getDurationOrDefault("TRACKER_REQUEST_TIMEOUT", 10*time.Second),
		TrackerSnapshotTTL:      getDurationOrDefault("TRACKER_SNAPSHOT_TTL", time.Second),
		NotifyBufferSize:        getIntOrDefault("NOTIFY_BUFFER_SIZE", 64),

		PolymarketCLOBURL:       getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketAPIKey:        os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:        os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase:    os.Getenv("POLYMARKET_PASSPHRASE"),
		PolymarketPrivateKey:    polymarketKey,
		PolymarketProxyAddress:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		PolymarketSignatureType: getIntOrDefault("POLYMARKET_SIGNATURE_TYPE", 0),

		KalshiAPIURL:         getEnvOrDefault("KALSHI_API_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		KalshiAPIKey:         os.Getenv("KALSHI_API_KEY"),
		KalshiPrivateKeyPath: os.Getenv("KALSHI_PRIVATE_KEY_PATH"),

		ExecutorPrivateKey:        getEnvOrDefault("EXECUTOR_PRIVATE_KEY", polymarketKey),
		SourceRPCURL:              os.Getenv("SOURCE_RPC_URL"),
		DestinationRPCURL:         os.Getenv("DESTINATION_RPC_URL"),
		SwapRouterAddress:         os.Getenv("SWAP_ROUTER_ADDRESS"),
		SourceTokenAddress:        os.Getenv("SOURCE_TOKEN_ADDRESS"),
		USDCAddress:               os.Getenv("USDC_ADDRESS"),
		TokenMessengerAddress:     os.Getenv("TOKEN_MESSENGER_ADDRESS"),
		MessageTransmitterAddress: os.Getenv("MESSAGE_TRANSMITTER_ADDRESS"),
		SourceDomain:              uint32(getIntOrDefault("SOURCE_DOMAIN", 0)),
		DestinationDomain:         uint32(getIntOrDefault("DESTINATION_DOMAIN", 7)), // Polygon PoS
		GasMultiplier:             getFloat64OrDefault("GAS_MULTIPLIER", 1.2),
		SlippageBPS:               uint64(getIntOrDefault("SLIPPAGE_BPS", 50)),
		IrisAPIURL:                getEnvOrDefault("IRIS_API_URL", "https://iris-api.circle.com"),

		CircuitBreakerEnabled:         getBoolOrDefault("CIRCUIT_BREAKER_ENABLED", false),
		CircuitBreakerCheckInterval:   getDurationOrDefault("CIRCUIT_BREAKER_CHECK_INTERVAL", 5*time.Minute),
		CircuitBreakerTradeMultiplier: getFloat64OrDefault("CIRCUIT_BREAKER_TRADE_MULTIPLIER", 3.0),
		CircuitBreakerMinAbsolute:     getFloat64OrDefault("CIRCUIT_BREAKER_MIN_ABSOLUTE", 5.0),
		CircuitBreakerHysteresisRatio: getFloat64OrDefault("CIRCUIT_BREAKER_HYSTERESIS_RATIO", 1.5),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polybridge"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polybridge"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polybridge"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.ExecutionMaxRetries <= 0 {
		return fmt.Errorf("EXECUTION_MAX_RETRIES must be positive, got %d", c.ExecutionMaxRetries)
	}

	if c.ExecutionRetryDelay <= 0 {
		return fmt.Errorf("EXECUTION_RETRY_DELAY must be positive, got %v", c.ExecutionRetryDelay)
	}

	if len(c.ExecutionPhases) == 0 {
		return fmt.Errorf("EXECUTION_PHASES cannot be empty")
	}

	if c.TrackerMaxSubscriptions <= 0 {
		return fmt.Errorf("TRACKER_MAX_SUBSCRIPTIONS must be positive, got %d", c.TrackerMaxSubscriptions)
	}

	if c.TrackerPollInterval <= 0 || c.TrackerTimeout <= 0 {
		return fmt.Errorf("TRACKER_POLL_INTERVAL and TRACKER_TIMEOUT must be positive")
	}

	if c.TrackerSnapshotTTL < 0 {
		return fmt.Errorf("TRACKER_SNAPSHOT_TTL cannot be negative, got %v", c.TrackerSnapshotTTL)
	}

	if c.GasMultiplier < 1.0 {
		return fmt.Errorf("GAS_MULTIPLIER must be >= 1.0, got %f", c.GasMultiplier)
	}

	if c.SlippageBPS >= 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS must be below 10000, got %d", c.SlippageBPS)
	}

	if c.PolymarketSignatureType < 0 || c.PolymarketSignatureType > 2 {
		return fmt.Errorf("POLYMARKET_SIGNATURE_TYPE must be 0, 1 or 2, got %d", c.PolymarketSignatureType)
	}

	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerHysteresisRatio < 1.0 {
			return fmt.Errorf("CIRCUIT_BREAKER_HYSTERESIS_RATIO must be >= 1.0, got %f", c.CircuitBreakerHysteresisRatio)
		}
		if c.SourceRPCURL == "" || c.USDCAddress == "" {
			return fmt.Errorf("circuit breaker requires SOURCE_RPC_URL and USDC_ADDRESS")
		}
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

// PostgresDSN returns the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL)
}

// ChainEnabled reports whether enough is configured to run on-chain phases.
func (c *Config) ChainEnabled() bool {
	return c.SourceRPCURL != "" && c.ExecutorPrivateKey != ""
}

// PolymarketTradingEnabled reports whether TRADING can be routed to Polymarket.
func (c *Config) PolymarketTradingEnabled() bool {
	return c.PolymarketAPIKey != "" && c.PolymarketSecret != "" &&
		c.PolymarketPassphrase != "" && c.PolymarketPrivateKey != ""
}

func parsePhases(value string) ([]types.ExecutionPhase, error) {
	var phases []types.ExecutionPhase
	for _, part := range strings.Split(value, ",") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		phase, ok := types.ParsePhase(name)
		if !ok || phase.IsTerminal() || phase == types.PhasePending {
			return nil, fmt.Errorf("unknown execution phase %q", name)
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
