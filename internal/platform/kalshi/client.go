// Package kalshi reads order and fill state from the Kalshi trade API.
package kalshi

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/polybridge/internal/platform"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production trade API root.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

const maxFillPages = 20

var errNotFound = errors.New("not found")

// Config holds configuration for the Kalshi client. Requests are signed
// only when both APIKey and PrivateKey are set.
type Config struct {
	BaseURL    string
	APIKey     string
	PrivateKey *rsa.PrivateKey
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client reads orders and fills from Kalshi.
type Client struct {
	baseURL    string
	basePath   string
	apiKey     string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

var _ platform.OrderSource = (*Client)(nil)

// NewClient creates a Kalshi client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		basePath:   parsed.Path,
		apiKey:     cfg.APIKey,
		privateKey: cfg.PrivateKey,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type apiOrder struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	FillCount      int64  `json:"fill_count"`
	RemainingCount int64  `json:"remaining_count"`
	CreatedTime    string `json:"created_time"`
	LastUpdateTime string `json:"last_update_time"`
}

type orderResponse struct {
	Order *apiOrder `json:"order"`
}

type apiFill struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Count       int64  `json:"count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	CreatedTime string `json:"created_time"`
}

type fillsResponse struct {
	Fills  []apiFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// GetOrder fetches an order by ID. It returns (nil, nil) for unknown
// orders.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var resp orderResponse
	err := c.get(ctx, "order", "/portfolio/orders/"+url.PathEscape(orderID), nil, &resp)
	if errors.Is(err, errNotFound) {
		c.logger.Debug("order-not-found", zap.String("order-id", orderID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if resp.Order == nil || resp.Order.OrderID == "" {
		return nil, nil
	}

	order := resp.Order.toOrder(c.now())
	return &order, nil
}

// GetTrades returns fills for the filter, following the cursor.
func (c *Client) GetTrades(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error) {
	query := url.Values{}
	if filter.OrderID != "" {
		query.Set("order_id", filter.OrderID)
	}
	if filter.MarketID != "" {
		query.Set("ticker", filter.MarketID)
	}
	if !filter.After.IsZero() {
		query.Set("min_ts", strconv.FormatInt(filter.After.Unix(), 10))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var trades []types.Trade
	for page := 0; page < maxFillPages; page++ {
		var resp fillsResponse
		if err := c.get(ctx, "fills", "/portfolio/fills", query, &resp); err != nil {
			return nil, fmt.Errorf("get fills: %w", err)
		}

		for _, f := range resp.Fills {
			trades = append(trades, f.toTrade())
			if filter.Limit > 0 && len(trades) >= filter.Limit {
				return trades, nil
			}
		}

		if resp.Cursor == "" || resp.Cursor == query.Get("cursor") {
			break
		}
		query.Set("cursor", resp.Cursor)
	}

	return trades, nil
}

func (c *Client) get(ctx context.Context, endpoint, requestPath string, query url.Values, out any) error {
	target := c.baseURL + requestPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" && c.privateKey != nil {
		if err := signRequest(req, c.apiKey, c.privateKey, c.basePath+requestPath, c.now()); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	platform.RequestDurationSeconds.WithLabelValues(string(types.PlatformKalshi), endpoint).
		Observe(time.Since(start).Seconds())
	if err != nil {
		platform.RequestErrorsTotal.WithLabelValues(string(types.PlatformKalshi), endpoint).Inc()
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		platform.RequestErrorsTotal.WithLabelValues(string(types.PlatformKalshi), endpoint).Inc()
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// mapStatus converts a Kalshi order status to the platform-neutral status.
func mapStatus(status string, filled int64) types.OrderStatus {
	switch strings.ToLower(status) {
	case "resting":
		if filled > 0 {
			return types.OrderStatusPartiallyFilled
		}
		return types.OrderStatusOpen
	case "executed":
		return types.OrderStatusFilled
	case "canceled", "cancelled":
		return types.OrderStatusCancelled
	default:
		return types.OrderStatusPending
	}
}

func (o *apiOrder) toOrder(now time.Time) types.Order {
	created := parseTime(o.CreatedTime, now)
	updated := parseTime(o.LastUpdateTime, now)

	return types.Order{
		ID:         o.OrderID,
		Platform:   types.PlatformKalshi,
		MarketID:   o.Ticker,
		Outcome:    strings.ToUpper(o.Side),
		Side:       types.Side(strings.ToUpper(o.Action)),
		Price:      centsToPrice(o.Side, o.YesPrice, o.NoPrice),
		Size:       float64(o.FillCount + o.RemainingCount),
		SizeFilled: float64(o.FillCount),
		Status:     mapStatus(o.Status, o.FillCount),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

func (f *apiFill) toTrade() types.Trade {
	return types.Trade{
		ID:        f.TradeID,
		OrderID:   f.OrderID,
		MarketID:  f.Ticker,
		Outcome:   strings.ToUpper(f.Side),
		Side:      types.Side(strings.ToUpper(f.Action)),
		Price:     centsToPrice(f.Side, f.YesPrice, f.NoPrice),
		Size:      float64(f.Count),
		Timestamp: parseTime(f.CreatedTime, time.Time{}),
	}
}

// centsToPrice returns the contract price in dollars for the traded side.
func centsToPrice(side string, yes, no int64) float64 {
	if strings.EqualFold(side, "no") {
		return float64(no) / 100
	}
	return float64(yes) / 100
}

func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
