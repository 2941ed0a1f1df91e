package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultIrisURL is Circle's mainnet attestation service.
const DefaultIrisURL = "https://iris-api.circle.com"

const attestationPending = "PENDING"

// Attestation is a CCTP message and Circle's signature over it.
type Attestation struct {
	Message     []byte
	Attestation []byte
}

// AttestationSource returns the attestation for a burn transaction, blocking
// until it is available.
type AttestationSource interface {
	Attestation(ctx context.Context, burnTxHash string) (*Attestation, error)
}

// IrisClient polls Circle's Iris API for CCTP attestations.
type IrisClient struct {
	baseURL      string
	sourceDomain uint32
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// IrisConfig holds configuration for the Iris client.
type IrisConfig struct {
	BaseURL      string
	SourceDomain uint32
	PollInterval time.Duration
	Logger       *zap.Logger
}

type irisResponse struct {
	Messages []struct {
		Attestation string `json:"attestation"`
		Message     string `json:"message"`
		EventNonce  string `json:"eventNonce"`
	} `json:"messages"`
}

// NewIrisClient creates an Iris client.
func NewIrisClient(cfg *IrisConfig) *IrisClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultIrisURL
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IrisClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		sourceDomain: cfg.SourceDomain,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// Attestation polls until the message emitted by burnTxHash is attested.
func (c *IrisClient) Attestation(ctx context.Context, burnTxHash string) (*Attestation, error) {
	if burnTxHash == "" {
		return nil, errors.New("burn transaction hash is empty")
	}

	start := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		att, err := c.fetch(ctx, burnTxHash)
		if err != nil {
			c.logger.Debug("attestation-fetch-failed",
				zap.String("tx-hash", burnTxHash),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if att != nil {
			AttestationWaitSeconds.Observe(time.Since(start).Seconds())
			c.logger.Info("attestation-received",
				zap.String("tx-hash", burnTxHash),
				zap.Int("attempts", attempt),
				zap.Duration("waited", time.Since(start)))
			return att, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for attestation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// fetch returns nil without error while the attestation is pending.
func (c *IrisClient) fetch(ctx context.Context, burnTxHash string) (*Attestation, error) {
	url := fmt.Sprintf("%s/v1/messages/%d/%s", c.baseURL, c.sourceDomain, burnTxHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("iris error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed irisResponse
	err = json.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(parsed.Messages) == 0 {
		return nil, nil
	}

	msg := parsed.Messages[0]
	if msg.Attestation == "" || strings.EqualFold(msg.Attestation, attestationPending) {
		return nil, nil
	}

	return &Attestation{
		Message:     common.FromHex(msg.Message),
		Attestation: common.FromHex(msg.Attestation),
	}, nil
}
