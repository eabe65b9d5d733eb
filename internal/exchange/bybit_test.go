package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"macdbot/internal/order"
)

func newTestBybit(t *testing.T, handler http.HandlerFunc) *Bybit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBybit(BybitOptions{
		APIKey:    "test-key",
		APISecret: "test-secret",
		BaseURL:   srv.URL,
	}, zap.NewNop().Sugar())
}

func ok(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"retCode": 0,
		"retMsg":  "OK",
		"result":  json.RawMessage(raw),
	})
}

func TestBybit_FetchCandles(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		assert.Equal(t, "5", r.URL.Query().Get("interval"))
		// Newest first, the way Bybit responds.
		ok(w, map[string]any{"list": [][]string{
			{"1717236600000", "102", "103", "101", "102.5", "10"},
			{"1717236300000", "101", "102", "100", "102", "12"},
			{"1717236000000", "100", "101", "99", "101", "15"},
		}})
	})

	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", "5m", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	// Oldest first after sorting.
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 102.5, candles[2].Close)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
	assert.Equal(t, "BTCUSDT", candles[0].Symbol)
	assert.Equal(t, "5m", candles[0].Timeframe)
}

func TestBybit_FetchCandles_SkipsMalformedRows(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"list": [][]string{
			{"1717236300000", "101", "102", "100", "102", "12"},
			{"not-a-timestamp", "101", "102", "100", "102", "12"},
			{"1717236000000", "100"},
		}})
	})

	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", "5m", 3)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}

func TestBybit_FetchCandles_UnsupportedTimeframe(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := b.FetchCandles(context.Background(), "BTCUSDT", "2h", 3)
	assert.Error(t, err)
}

func TestBybit_InstrumentInfo(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		ok(w, map[string]any{"list": []map[string]any{{
			"symbol": "BTCUSDT",
			"lotSizeFilter": map[string]string{
				"basePrecision": "0.000001",
				"minOrderQty":   "0.000048",
				"minOrderAmt":   "1",
			},
		}}})
	})

	info, err := b.InstrumentInfo(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", info.Symbol)
	assert.Equal(t, "0.000001", info.BasePrecision)
	assert.Equal(t, "0.000048", info.MinOrderQty)
	assert.Equal(t, "1", info.MinOrderAmt)
}

func TestBybit_AssetBalance(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/account/wallet-balance", r.URL.Path)
		assert.Equal(t, "UNIFIED", r.URL.Query().Get("accountType"))
		assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		ok(w, map[string]any{"list": []map[string]any{{
			"coin": []map[string]string{
				{"coin": "USDT", "walletBalance": "1000.5"},
				{"coin": "BTC", "walletBalance": "0.123456789012"},
			},
		}}})
	})

	usdt, err := b.AssetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Equal(decimal.RequireFromString("1000.5")))

	// Truncated to 8 fractional digits, never rounded up.
	btc, err := b.AssetBalance(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Equal(decimal.RequireFromString("0.12345678")), "got %s", btc)

	// Absent asset reads as zero.
	eth, err := b.AssetBalance(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, eth.IsZero())
}

func TestBybit_LastPrice(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"list": []map[string]string{{"lastPrice": "30123.45"}}})
	})

	price, err := b.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("30123.45")))
}

func TestBybit_PlaceMarketOrder(t *testing.T) {
	var gotBody map[string]string
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v5/order/create", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		ok(w, map[string]string{"orderId": "abc-123"})
	})

	qty := decimal.RequireFromString("0.003333")
	receipt, err := b.PlaceMarketOrder(context.Background(), "BTCUSDT", order.Buy, qty)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", receipt.OrderID)
	assert.Equal(t, order.Buy, receipt.Side)

	assert.Equal(t, "spot", gotBody["category"])
	assert.Equal(t, "Market", gotBody["orderType"])
	assert.Equal(t, "Buy", gotBody["side"])
	// Exact decimal text, no float formatting.
	assert.Equal(t, "0.003333", gotBody["qty"])
}

func TestBybit_PlaceMarketOrder_RejectsZeroQty(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := b.PlaceMarketOrder(context.Background(), "BTCUSDT", order.Buy, decimal.Zero)
	assert.Error(t, err)
}

func TestBybit_RetCodeError(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"retCode": 10001,
			"retMsg":  "params error",
			"result":  map[string]any{},
		})
	})
	_, err := b.LastPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10001")
}

func TestBybit_ServerTime(t *testing.T) {
	b := newTestBybit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/time", r.URL.Path)
		ok(w, map[string]string{"timeSecond": "1717236000", "timeNano": "1717236000123456789"})
	})

	ts, err := b.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1717236000, 0).UTC(), ts)
}

func TestBybit_Sign(t *testing.T) {
	b := NewBybit(BybitOptions{APIKey: "key", APISecret: "secret"}, zap.NewNop().Sugar())
	// HMAC-SHA256("secret", "1700000000000" + "key" + "5000" + "qs") hex.
	got := b.sign("1700000000000", "qs")
	assert.Len(t, got, 64)
	// Deterministic for fixed inputs.
	assert.Equal(t, got, b.sign("1700000000000", "qs"))
	assert.NotEqual(t, got, b.sign("1700000000001", "qs"))
}
