package config

import (
	"testing"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 3, cfg.ExecutionMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.ExecutionRetryDelay)
	assert.Equal(t, []types.ExecutionPhase{types.PhaseSwapping, types.PhaseBridging}, cfg.ExecutionPhases)
	assert.Equal(t, 100, cfg.TrackerMaxSubscriptions)
	assert.Equal(t, 2*time.Second, cfg.TrackerPollInterval)
	assert.Equal(t, time.Hour, cfg.TrackerTimeout)
	assert.Equal(t, time.Second, cfg.TrackerSnapshotTTL)
	assert.Equal(t, "https://clob.polymarket.com", cfg.PolymarketCLOBURL)
	assert.InDelta(t, 1.2, cfg.GasMultiplier, 1e-9)
	assert.Equal(t, "console", cfg.StorageMode)
	assert.False(t, cfg.CircuitBreakerEnabled)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("EXECUTION_PHASES", "swapping, bridging ,AWAITING_ATTESTATION,CLAIMING,TRADING")
	t.Setenv("EXECUTION_MAX_RETRIES", "5")
	t.Setenv("TRACKER_POLL_INTERVAL", "250ms")
	t.Setenv("POLYMARKET_PRIVATE_KEY", "0xabc")
	t.Setenv("STORAGE_MODE", "postgres")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []types.ExecutionPhase{
		types.PhaseSwapping,
		types.PhaseBridging,
		types.PhaseAwaitingAttestation,
		types.PhaseClaiming,
		types.PhaseTrading,
	}, cfg.ExecutionPhases)
	assert.Equal(t, 5, cfg.ExecutionMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.TrackerPollInterval)
	assert.Equal(t, "0xabc", cfg.ExecutorPrivateKey)
	assert.Equal(t, "postgres", cfg.StorageMode)
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EXECUTION_MAX_RETRIES", "many")
	t.Setenv("TRACKER_TIMEOUT", "forever")
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "maybe")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ExecutionMaxRetries)
	assert.Equal(t, time.Hour, cfg.TrackerTimeout)
	assert.False(t, cfg.CircuitBreakerEnabled)
}

func TestLoadFromEnv_UnknownPhase(t *testing.T) {
	t.Setenv("EXECUTION_PHASES", "SWAPPING,TELEPORTING")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEPORTING")
}

func TestLoadFromEnv_TerminalPhaseRejected(t *testing.T) {
	t.Setenv("EXECUTION_PHASES", "SWAPPING,COMPLETED")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty-port", mutate: func(c *Config) { c.HTTPPort = "" }, wantErr: "HTTP_PORT"},
		{name: "zero-retries", mutate: func(c *Config) { c.ExecutionMaxRetries = 0 }, wantErr: "EXECUTION_MAX_RETRIES"},
		{name: "zero-retry-delay", mutate: func(c *Config) { c.ExecutionRetryDelay = 0 }, wantErr: "EXECUTION_RETRY_DELAY"},
		{name: "no-phases", mutate: func(c *Config) { c.ExecutionPhases = nil }, wantErr: "EXECUTION_PHASES"},
		{name: "zero-subscriptions", mutate: func(c *Config) { c.TrackerMaxSubscriptions = 0 }, wantErr: "TRACKER_MAX_SUBSCRIPTIONS"},
		{name: "zero-poll", mutate: func(c *Config) { c.TrackerPollInterval = 0 }, wantErr: "TRACKER_POLL_INTERVAL"},
		{name: "negative-ttl", mutate: func(c *Config) { c.TrackerSnapshotTTL = -time.Second }, wantErr: "TRACKER_SNAPSHOT_TTL"},
		{name: "low-gas-multiplier", mutate: func(c *Config) { c.GasMultiplier = 0.9 }, wantErr: "GAS_MULTIPLIER"},
		{name: "slippage-too-high", mutate: func(c *Config) { c.SlippageBPS = 10_000 }, wantErr: "SLIPPAGE_BPS"},
		{name: "bad-signature-type", mutate: func(c *Config) { c.PolymarketSignatureType = 3 }, wantErr: "POLYMARKET_SIGNATURE_TYPE"},
		{name: "bad-storage-mode", mutate: func(c *Config) { c.StorageMode = "s3" }, wantErr: "STORAGE_MODE"},
		{
			name:    "breaker-without-rpc",
			mutate:  func(c *Config) { c.CircuitBreakerEnabled = true },
			wantErr: "circuit breaker requires",
		},
		{
			name: "breaker-low-hysteresis",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
				c.CircuitBreakerHysteresisRatio = 0.5
			},
			wantErr: "CIRCUIT_BREAKER_HYSTERESIS_RATIO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db",
		PostgresPort: "5433",
		PostgresUser: "u",
		PostgresPass: "p",
		PostgresDB:   "d",
		PostgresSSL:  "require",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", cfg.PostgresDSN())
}

func TestFeatureToggles(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.ChainEnabled())
	assert.False(t, cfg.PolymarketTradingEnabled())

	cfg.SourceRPCURL = "http://localhost:8545"
	cfg.ExecutorPrivateKey = "0xabc"
	assert.True(t, cfg.ChainEnabled())

	cfg.PolymarketAPIKey = "k"
	cfg.PolymarketSecret = "s"
	cfg.PolymarketPassphrase = "p"
	cfg.PolymarketPrivateKey = "0xabc"
	assert.True(t, cfg.PolymarketTradingEnabled())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = NewLogger("")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("verbose")
	require.Error(t, err)
}
