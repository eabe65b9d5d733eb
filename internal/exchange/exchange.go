// Package exchange
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/internal/candle"
	"macdbot/internal/instrument"
	"macdbot/internal/order"
)

// Exchange is the gateway capability set the bot consumes.
type Exchange interface {
	Name() string

	// FetchCandles returns up to limit candles for the symbol and
	// timeframe, ascending by timestamp. The newest candle may still
	// be forming.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error)

	// InstrumentInfo returns the raw lot-size filter for a symbol.
	InstrumentInfo(ctx context.Context, symbol string) (instrument.Info, error)

	// AssetBalance returns the available balance of an asset, zero when
	// the asset is absent from the account.
	AssetBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// LastPrice returns the latest traded price for a symbol.
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// PlaceMarketOrder submits a spot market order. The quantity is
	// transmitted as an exact decimal string.
	PlaceMarketOrder(ctx context.Context, symbol string, side order.Side, qty decimal.Decimal) (order.Receipt, error)

	// ServerTime returns the exchange clock, used for candle-close
	// alignment.
	ServerTime(ctx context.Context) (time.Time, error)
}
