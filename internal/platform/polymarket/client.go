// Package polymarket talks to the Polymarket CLOB: order and fill lookups
// for the status tracker, and order placement for the TRADING phase.
package polymarket

import (
	"bytes"
	"context"
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

// DefaultBaseURL is the production CLOB endpoint.
const DefaultBaseURL = "https://clob.polymarket.com"

// endCursor marks the last page of a paginated CLOB response.
const endCursor = "LTE="

const maxTradePages = 20

var errNotFound = errors.New("not found")

// Config holds configuration for the CLOB client.
type Config struct {
	BaseURL     string
	Credentials Credentials
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client reads orders and fills from the CLOB.
type Client struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
	logger      *zap.Logger
	now         func() time.Time
}

// NewClient creates a CLOB client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
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
		baseURL:     baseURL,
		credentials: cfg.Credentials,
		httpClient:  httpClient,
		logger:      logger,
		now:         time.Now,
	}
}

var _ platform.OrderSource = (*Client)(nil)

type openOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Outcome      string `json:"outcome"`
	CreatedAt    int64  `json:"created_at"`
}

type makerOrder struct {
	OrderID string `json:"order_id"`
	Price   string `json:"price"`
	Amount  string `json:"matched_amount"`
	Outcome string `json:"outcome"`
}

type clobTrade struct {
	ID           string       `json:"id"`
	TakerOrderID string       `json:"taker_order_id"`
	Market       string       `json:"market"`
	Side         string       `json:"side"`
	Size         string       `json:"size"`
	Price        string       `json:"price"`
	Outcome      string       `json:"outcome"`
	MatchTime    string       `json:"match_time"`
	MakerOrders  []makerOrder `json:"maker_orders"`
}

type tradesPage struct {
	Data       []clobTrade `json:"data"`
	NextCursor string      `json:"next_cursor"`
}

// GetOrder fetches an order by ID. It returns (nil, nil) when the CLOB does
// not know the order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var raw *openOrder
	err := c.get(ctx, "order", "/data/order/"+url.PathEscape(orderID), nil, &raw)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if raw == nil || raw.ID == "" {
		return nil, nil
	}

	order := raw.toOrder(c.now())
	return &order, nil
}

// GetTrades returns fills matching filter. When OrderID is set, only
// trades where the order was taker or maker are returned.
func (c *Client) GetTrades(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error) {
	query := url.Values{}
	if filter.MarketID != "" {
		query.Set("market", filter.MarketID)
	}
	if !filter.After.IsZero() {
		query.Set("after", strconv.FormatInt(filter.After.Unix(), 10))
	}

	var trades []types.Trade
	cursor := ""
	for page := 0; page < maxTradePages; page++ {
		if cursor != "" {
			query.Set("next_cursor", cursor)
		}

		var resp tradesPage
		if err := c.get(ctx, "trades", "/data/trades", query, &resp); err != nil {
			return nil, fmt.Errorf("get trades: %w", err)
		}

		for _, t := range resp.Data {
			trade, ok := t.toTrade(filter.OrderID)
			if !ok {
				continue
			}
			trades = append(trades, trade)
			if filter.Limit > 0 && len(trades) >= filter.Limit {
				return trades, nil
			}
		}

		if resp.NextCursor == "" || resp.NextCursor == endCursor || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
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

	body, status, err := c.do(req, endpoint, requestPath, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return errNotFound
	}
	if status != http.StatusOK {
		platform.RequestErrorsTotal.WithLabelValues(string(types.PlatformPolymarket), endpoint).Inc()
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// do signs (when credentials are configured) and sends req, returning the
// response body and status.
func (c *Client) do(req *http.Request, endpoint, requestPath string, payload []byte) ([]byte, int, error) {
	if !c.credentials.Empty() {
		if err := c.credentials.apply(req, requestPath, payload, c.now()); err != nil {
			return nil, 0, fmt.Errorf("sign request: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	platform.RequestDurationSeconds.WithLabelValues(string(types.PlatformPolymarket), endpoint).
		Observe(time.Since(start).Seconds())
	if err != nil {
		platform.RequestErrorsTotal.WithLabelValues(string(types.PlatformPolymarket), endpoint).Inc()
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// mapStatus converts a CLOB order status to the platform-neutral status.
func mapStatus(status string, sizeMatched float64) types.OrderStatus {
	switch strings.ToUpper(status) {
	case "LIVE":
		if sizeMatched > 0 {
			return types.OrderStatusPartiallyFilled
		}
		return types.OrderStatusOpen
	case "MATCHED":
		return types.OrderStatusFilled
	case "CANCELED", "CANCELLED":
		return types.OrderStatusCancelled
	case "EXPIRED":
		return types.OrderStatusExpired
	case "REJECTED":
		return types.OrderStatusRejected
	default:
		return types.OrderStatusPending
	}
}

func (o *openOrder) toOrder(now time.Time) types.Order {
	size := parseFloat(o.OriginalSize)
	matched := parseFloat(o.SizeMatched)

	created := now
	if o.CreatedAt > 0 {
		created = time.Unix(o.CreatedAt, 0).UTC()
	}

	return types.Order{
		ID:         o.ID,
		Platform:   types.PlatformPolymarket,
		MarketID:   o.Market,
		Outcome:    o.Outcome,
		Side:       types.Side(strings.ToUpper(o.Side)),
		Price:      parseFloat(o.Price),
		Size:       size,
		SizeFilled: matched,
		Status:     mapStatus(o.Status, matched),
		CreatedAt:  created,
		UpdatedAt:  now,
	}
}

// toTrade converts a CLOB trade. With orderID set, the trade is kept only
// if orderID took part, and maker fills report the maker's own price and
// size.
func (t *clobTrade) toTrade(orderID string) (types.Trade, bool) {
	trade := types.Trade{
		ID:        t.ID,
		OrderID:   t.TakerOrderID,
		MarketID:  t.Market,
		Outcome:   t.Outcome,
		Side:      types.Side(strings.ToUpper(t.Side)),
		Price:     parseFloat(t.Price),
		Size:      parseFloat(t.Size),
		Timestamp: parseUnix(t.MatchTime),
	}

	if orderID == "" || t.TakerOrderID == orderID {
		return trade, true
	}

	for _, m := range t.MakerOrders {
		if m.OrderID != orderID {
			continue
		}
		trade.OrderID = m.OrderID
		trade.Price = parseFloat(m.Price)
		trade.Size = parseFloat(m.Amount)
		if m.Outcome != "" {
			trade.Outcome = m.Outcome
		}
		return trade, true
	}
	return types.Trade{}, false
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
