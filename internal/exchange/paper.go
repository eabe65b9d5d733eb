package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"macdbot/internal/candle"
	"macdbot/internal/instrument"
	"macdbot/internal/order"
)

// Paper is an in-memory exchange for dry runs and tests. Market orders
// fill instantly at the last known price and move simulated balances.
// With a market feed attached, candles, prices, instrument metadata and
// server time come from the real exchange while the account stays
// simulated.
type Paper struct {
	symbol     string
	baseAsset  string
	quoteAsset string
	market     Exchange
	info       instrument.Info
	balances   map[string]decimal.Decimal
	candles    []candle.Candle
	lastPrice  decimal.Decimal
	orderSeq   int
	log        *zap.SugaredLogger
}

func NewPaper(symbol, baseAsset, quoteAsset string, quoteBalance decimal.Decimal, log *zap.SugaredLogger) *Paper {
	return &Paper{
		symbol:     symbol,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		info: instrument.Info{
			Symbol:        symbol,
			BasePrecision: "0.000001",
			MinOrderQty:   "0.000048",
			MinOrderAmt:   "1",
		},
		balances: map[string]decimal.Decimal{quoteAsset: quoteBalance},
		log:      log,
	}
}

// SetMarketFeed attaches a real exchange for market-data reads.
func (p *Paper) SetMarketFeed(market Exchange) { p.market = market }

// SetInstrumentInfo overrides the default lot-size filter.
func (p *Paper) SetInstrumentInfo(info instrument.Info) { p.info = info }

// SetCandles seeds the candle series and the last price.
func (p *Paper) SetCandles(candles []candle.Candle) {
	p.candles = candles
	if len(candles) > 0 {
		p.lastPrice = decimal.NewFromFloat(candles[len(candles)-1].Close)
	}
}

// SetBalance sets an asset balance directly.
func (p *Paper) SetBalance(asset string, balance decimal.Decimal) {
	p.balances[asset] = balance
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	if symbol != p.symbol {
		return nil, fmt.Errorf("unknown symbol: %s", symbol)
	}
	if p.market != nil {
		candles, err := p.market.FetchCandles(ctx, symbol, timeframe, limit)
		if err == nil && len(candles) > 0 {
			p.lastPrice = decimal.NewFromFloat(candles[len(candles)-1].Close)
		}
		return candles, err
	}
	candles := p.candles
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]candle.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (p *Paper) InstrumentInfo(ctx context.Context, symbol string) (instrument.Info, error) {
	if symbol != p.symbol {
		return instrument.Info{}, fmt.Errorf("unknown symbol: %s", symbol)
	}
	if p.market != nil {
		return p.market.InstrumentInfo(ctx, symbol)
	}
	return p.info, nil
}

func (p *Paper) AssetBalance(_ context.Context, asset string) (decimal.Decimal, error) {
	return p.balances[asset], nil
}

func (p *Paper) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol != p.symbol {
		return decimal.Zero, fmt.Errorf("unknown symbol: %s", symbol)
	}
	if p.market != nil {
		price, err := p.market.LastPrice(ctx, symbol)
		if err == nil {
			p.lastPrice = price
		}
		return price, err
	}
	if !p.lastPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("no price seeded for %s", symbol)
	}
	return p.lastPrice, nil
}

func (p *Paper) PlaceMarketOrder(_ context.Context, symbol string, side order.Side, qty decimal.Decimal) (order.Receipt, error) {
	if symbol != p.symbol {
		return order.Receipt{}, fmt.Errorf("unknown symbol: %s", symbol)
	}
	if !qty.IsPositive() {
		return order.Receipt{}, fmt.Errorf("order quantity must be positive")
	}

	price := p.lastPrice
	notional := qty.Mul(price)
	switch side {
	case order.Buy:
		if notional.GreaterThan(p.balances[p.quoteAsset]) {
			return order.Receipt{}, fmt.Errorf("insufficient %s balance", p.quoteAsset)
		}
		p.balances[p.quoteAsset] = p.balances[p.quoteAsset].Sub(notional)
		p.balances[p.baseAsset] = p.balances[p.baseAsset].Add(qty)
	case order.Sell:
		if qty.GreaterThan(p.balances[p.baseAsset]) {
			return order.Receipt{}, fmt.Errorf("insufficient %s balance", p.baseAsset)
		}
		p.balances[p.baseAsset] = p.balances[p.baseAsset].Sub(qty)
		p.balances[p.quoteAsset] = p.balances[p.quoteAsset].Add(notional)
	default:
		return order.Receipt{}, fmt.Errorf("invalid side: %s", side)
	}

	p.orderSeq++
	p.log.Infof("Exchange | paper %s %s qty=%s price=%s", side, symbol, qty, price)
	return order.Receipt{
		OrderID:   "paper-" + strconv.Itoa(p.orderSeq),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		AvgPrice:  price,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (p *Paper) ServerTime(ctx context.Context) (time.Time, error) {
	if p.market != nil {
		return p.market.ServerTime(ctx)
	}
	return time.Now().UTC(), nil
}
