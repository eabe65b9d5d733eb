// Package instrument
package instrument

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInstrumentData indicates the exchange returned no usable precision
// metadata for a symbol. Orders must never be placed without a resolved
// Spec, so callers abort the cycle on this error.
var ErrInstrumentData = errors.New("instrument data unavailable")

// Spec holds the exchange-imposed precision and minimum constraints for
// one spot symbol, derived from its lot-size filter.
type Spec struct {
	Symbol string

	// QuantityStep is the smallest tradable base-quantity increment,
	// e.g. 0.000001 for BTCUSDT.
	QuantityStep decimal.Decimal

	// MinOrderQty is the smallest sell-side base quantity.
	MinOrderQty decimal.Decimal

	// MinOrderAmt is the smallest buy-side notional in quote currency.
	MinOrderAmt decimal.Decimal
}

// QuantityExponent is the decimal exponent implied by the step size:
// a step of "0.001" yields -3.
func (s Spec) QuantityExponent() int32 {
	return s.QuantityStep.Exponent()
}

// TruncateQuantity rounds a quantity down toward zero to the step's
// exponent. Truncation, never rounding-to-nearest: the bot must not
// request more than it holds or can afford.
func (s Spec) TruncateQuantity(q decimal.Decimal) decimal.Decimal {
	places := -s.QuantityStep.Exponent()
	if places < 0 {
		places = 0
	}
	return q.Truncate(places)
}

// Info is the raw lot-size filter payload reported by the exchange.
type Info struct {
	Symbol        string
	BasePrecision string
	MinOrderQty   string
	MinOrderAmt   string
}

// Source provides raw instrument metadata; implemented by the exchange
// gateway.
type Source interface {
	InstrumentInfo(ctx context.Context, symbol string) (Info, error)
}

// Resolver converts exchange instrument metadata into a Spec. Specs are
// fetched fresh per decision; no caching.
type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

func (r *Resolver) Resolve(ctx context.Context, symbol string) (Spec, error) {
	info, err := r.src.InstrumentInfo(ctx, symbol)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: fetching %s: %v", ErrInstrumentData, symbol, err)
	}
	if info.BasePrecision == "" || info.MinOrderQty == "" || info.MinOrderAmt == "" {
		return Spec{}, fmt.Errorf("%w: %s lot size filter is missing fields", ErrInstrumentData, symbol)
	}

	step, err := decimal.NewFromString(info.BasePrecision)
	if err != nil || !step.IsPositive() {
		return Spec{}, fmt.Errorf("%w: %s base precision %q is not a positive decimal", ErrInstrumentData, symbol, info.BasePrecision)
	}
	minQty, err := decimal.NewFromString(info.MinOrderQty)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s min order qty %q: %v", ErrInstrumentData, symbol, info.MinOrderQty, err)
	}
	minAmt, err := decimal.NewFromString(info.MinOrderAmt)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s min order amt %q: %v", ErrInstrumentData, symbol, info.MinOrderAmt, err)
	}

	return Spec{
		Symbol:       info.Symbol,
		QuantityStep: step,
		MinOrderQty:  minQty,
		MinOrderAmt:  minAmt,
	}, nil
}
