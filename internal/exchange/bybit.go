package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"macdbot/internal/candle"
	"macdbot/internal/instrument"
	"macdbot/internal/order"
	"macdbot/internal/tfutils"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	recvWindow = "5000"

	// Balances are quantized to 8 fractional digits on read, truncated,
	// so a later sell can never exceed what the wallet reports.
	balancePlaces = 8
)

// Bybit is a spot-only adapter over the Bybit V5 REST API.
type Bybit struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	log       *zap.SugaredLogger
}

type BybitOptions struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the endpoint; used by tests.
	BaseURL string
	Timeout time.Duration
}

func NewBybit(opts BybitOptions, log *zap.SugaredLogger) *Bybit {
	baseURL := MainnetURL
	if opts.Testnet {
		baseURL = TestnetURL
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Bybit{
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

func (b *Bybit) Name() string { return "bybit" }

// retry wraps a function with retry logic for transient errors, using
// exponential backoff and error logging.
func (b *Bybit) retry(attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		b.log.Warnf("Exchange | %s retry attempt %d/%d failed: %v. Backing off for %v", b.Name(), i, attempts, err, backoff)
		if i < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sign produces the V5 request signature over
// timestamp + apiKey + recvWindow + payload.
func (b *Bybit) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(timestamp + b.apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *Bybit) do(ctx context.Context, method, path string, query url.Values, body any, signed bool, out any) error {
	reqURL := b.baseURL + path
	rawQuery := ""
	if len(query) > 0 {
		rawQuery = query.Encode()
		reqURL += "?" + rawQuery
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		payload := rawQuery
		if method != http.MethodGet {
			payload = string(bodyBytes)
		}
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
		req.Header.Set("X-BAPI-SIGN", b.sign(timestamp, payload))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, data)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("%s %s: retCode %d: %s", method, path, env.RetCode, env.RetMsg)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

func (b *Bybit) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	interval := tfutils.BybitInterval(timeframe)
	if interval == "" {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	query := url.Values{}
	query.Set("category", "spot")
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		List [][]string `json:"list"`
	}
	err := b.retry(3, 2*time.Second, func() error {
		return b.do(ctx, http.MethodGet, "/v5/market/kline", query, nil, false, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}

	candles := make([]candle.Candle, 0, len(result.List))
	for _, row := range result.List {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		c := candle.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Symbol:    symbol,
			Timeframe: timeframe,
		}
		if err := c.Validate(); err != nil {
			continue
		}
		candles = append(candles, c)
	}
	// Bybit returns newest first.
	candle.SortAscending(candles)
	return candles, nil
}

func (b *Bybit) InstrumentInfo(ctx context.Context, symbol string) (instrument.Info, error) {
	query := url.Values{}
	query.Set("category", "spot")
	query.Set("symbol", symbol)

	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				BasePrecision string `json:"basePrecision"`
				MinOrderQty   string `json:"minOrderQty"`
				MinOrderAmt   string `json:"minOrderAmt"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	err := b.retry(3, 2*time.Second, func() error {
		return b.do(ctx, http.MethodGet, "/v5/market/instruments-info", query, nil, false, &result)
	})
	if err != nil {
		return instrument.Info{}, fmt.Errorf("fetching instrument info: %w", err)
	}
	if len(result.List) == 0 {
		return instrument.Info{}, fmt.Errorf("unknown symbol: %s", symbol)
	}

	item := result.List[0]
	return instrument.Info{
		Symbol:        item.Symbol,
		BasePrecision: item.LotSizeFilter.BasePrecision,
		MinOrderQty:   item.LotSizeFilter.MinOrderQty,
		MinOrderAmt:   item.LotSizeFilter.MinOrderAmt,
	}, nil
}

func (b *Bybit) AssetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	var result struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	err := b.retry(3, 2*time.Second, func() error {
		return b.do(ctx, http.MethodGet, "/v5/account/wallet-balance", query, nil, true, &result)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching balance: %w", err)
	}

	for _, acct := range result.List {
		for _, coin := range acct.Coin {
			if coin.Coin != asset {
				continue
			}
			balance, err := decimal.NewFromString(coin.WalletBalance)
			if err != nil {
				b.log.Errorf("Exchange | %s unparsable %s balance %q", b.Name(), asset, coin.WalletBalance)
				return decimal.Zero, nil
			}
			return balance.Truncate(balancePlaces), nil
		}
	}
	// Asset absent from the account.
	return decimal.Zero, nil
}

func (b *Bybit) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("category", "spot")
	query.Set("symbol", symbol)

	var result struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	err := b.retry(3, 2*time.Second, func() error {
		return b.do(ctx, http.MethodGet, "/v5/market/tickers", query, nil, false, &result)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching ticker: %w", err)
	}
	if len(result.List) == 0 {
		return decimal.Zero, fmt.Errorf("no ticker for symbol: %s", symbol)
	}
	price, err := decimal.NewFromString(result.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable last price %q: %w", result.List[0].LastPrice, err)
	}
	return price, nil
}

func (b *Bybit) PlaceMarketOrder(ctx context.Context, symbol string, side order.Side, qty decimal.Decimal) (order.Receipt, error) {
	if !qty.IsPositive() {
		return order.Receipt{}, errors.New("order quantity must be positive")
	}

	body := map[string]string{
		"category":    "spot",
		"symbol":      symbol,
		"side":        string(side),
		"orderType":   "Market",
		"qty":         qty.String(),
		"timeInForce": "GTC",
	}
	var result struct {
		OrderID string `json:"orderId"`
	}
	// Order placement is not retried: a timeout after a fill would
	// double the position.
	if err := b.do(ctx, http.MethodPost, "/v5/order/create", nil, body, true, &result); err != nil {
		return order.Receipt{}, fmt.Errorf("placing %s order: %w", side, err)
	}

	b.log.Infof("Exchange | %s %s %s qty=%s order placed: %s", b.Name(), side, symbol, qty, result.OrderID)
	return order.Receipt{
		OrderID:   result.OrderID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (b *Bybit) ServerTime(ctx context.Context) (time.Time, error) {
	var result struct {
		TimeSecond string `json:"timeSecond"`
		TimeNano   string `json:"timeNano"`
	}
	err := b.retry(3, 2*time.Second, func() error {
		return b.do(ctx, http.MethodGet, "/v5/market/time", nil, nil, false, &result)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching server time: %w", err)
	}
	secs, err := strconv.ParseInt(result.TimeSecond, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable server time %q: %w", result.TimeSecond, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}
