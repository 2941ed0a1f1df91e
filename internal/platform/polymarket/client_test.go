package polymarket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() Credentials {
	return Credentials{
		APIKey:     "api-key",
		Secret:     base64.URLEncoding.EncodeToString([]byte("secret")),
		Passphrase: "pass",
		Address:    "0x1111111111111111111111111111111111111111",
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		BaseURL:     srv.URL,
		Credentials: testCredentials(),
	})
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		matched float64
		want    types.OrderStatus
	}{
		{"live", "LIVE", 0, types.OrderStatusOpen},
		{"live-partially-matched", "LIVE", 2.5, types.OrderStatusPartiallyFilled},
		{"matched", "MATCHED", 10, types.OrderStatusFilled},
		{"canceled", "CANCELED", 0, types.OrderStatusCancelled},
		{"delayed", "DELAYED", 0, types.OrderStatusPending},
		{"unmatched", "UNMATCHED", 0, types.OrderStatusPending},
		{"lowercase", "matched", 10, types.OrderStatusFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStatus(tt.status, tt.matched))
		})
	}
}

func TestClient_GetOrder(t *testing.T) {
	var gotHeaders http.Header
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, "/data/order/0xorder", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "0xorder",
			"status": "LIVE",
			"market": "0xmarket",
			"asset_id": "123",
			"side": "buy",
			"original_size": "10",
			"size_matched": "4",
			"price": "0.55",
			"outcome": "Yes",
			"created_at": 1700000000
		}`))
	}))

	order, err := client.GetOrder(context.Background(), "0xorder")
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, "0xorder", order.ID)
	assert.Equal(t, types.PlatformPolymarket, order.Platform)
	assert.Equal(t, "0xmarket", order.MarketID)
	assert.Equal(t, types.SideBuy, order.Side)
	assert.InDelta(t, 0.55, order.Price, 1e-9)
	assert.InDelta(t, 10.0, order.Size, 1e-9)
	assert.InDelta(t, 4.0, order.SizeFilled, 1e-9)
	assert.Equal(t, types.OrderStatusPartiallyFilled, order.Status)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), order.CreatedAt)

	assert.Equal(t, "api-key", gotHeaders.Get("POLY_API_KEY"))
	assert.Equal(t, "pass", gotHeaders.Get("POLY_PASSPHRASE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_SIGNATURE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_TIMESTAMP"))
}

func TestClient_GetOrder_NotFound(t *testing.T) {
	t.Run("404", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		order, err := client.GetOrder(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, order)
	})

	t.Run("null-body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("null"))
		}))

		order, err := client.GetOrder(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, order)
	})
}

func TestClient_GetOrder_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	order, err := client.GetOrder(context.Background(), "0xorder")
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_GetTrades_FiltersAndPaginates(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/data/trades", r.URL.Path)
		assert.Equal(t, "0xmarket", r.URL.Query().Get("market"))

		if r.URL.Query().Get("next_cursor") == "" {
			_, _ = w.Write([]byte(`{
				"data": [
					{"id": "t1", "taker_order_id": "0xorder", "market": "0xmarket", "side": "BUY", "size": "3", "price": "0.5", "outcome": "Yes", "match_time": "1700000000"},
					{"id": "t2", "taker_order_id": "0xother", "market": "0xmarket", "side": "SELL", "size": "9", "price": "0.4", "outcome": "Yes", "match_time": "1700000001"}
				],
				"next_cursor": "MTAw"
			}`))
			return
		}

		assert.Equal(t, "MTAw", r.URL.Query().Get("next_cursor"))
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "t3", "taker_order_id": "0xother", "market": "0xmarket", "side": "SELL", "size": "5", "price": "0.45", "outcome": "No", "match_time": "1700000002",
				 "maker_orders": [{"order_id": "0xorder", "price": "0.55", "matched_amount": "2", "outcome": "Yes"}]}
			],
			"next_cursor": "LTE="
		}`))
	}))

	trades, err := client.GetTrades(context.Background(), types.TradeFilter{
		OrderID:  "0xorder",
		MarketID: "0xmarket",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, trades, 2)

	assert.Equal(t, "t1", trades[0].ID)
	assert.InDelta(t, 3.0, trades[0].Size, 1e-9)

	assert.Equal(t, "t3", trades[1].ID)
	assert.Equal(t, "0xorder", trades[1].OrderID)
	assert.InDelta(t, 0.55, trades[1].Price, 1e-9)
	assert.InDelta(t, 2.0, trades[1].Size, 1e-9)
	assert.Equal(t, "Yes", trades[1].Outcome)
}

func TestClient_GetTrades_Limit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "t1", "taker_order_id": "a", "size": "1", "price": "0.5"},
				{"id": "t2", "taker_order_id": "b", "size": "1", "price": "0.5"}
			],
			"next_cursor": "LTE="
		}`))
	}))

	trades, err := client.GetTrades(context.Background(), types.TradeFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestCredentials_SignIsDeterministic(t *testing.T) {
	creds := testCredentials()

	a, err := creds.sign("1700000000", "GET", "/data/order/x", nil)
	require.NoError(t, err)
	b, err := creds.sign("1700000000", "GET", "/data/order/x", nil)
	require.NoError(t, err)
	c, err := creds.sign("1700000001", "GET", "/data/order/x", nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCredentials_InvalidSecret(t *testing.T) {
	creds := testCredentials()
	creds.Secret = "!!!not-base64!!!"

	_, err := creds.sign("1", "GET", "/", nil)
	assert.Error(t, err)
}
