// Package position
package position

import (
	"errors"

	"github.com/shopspring/decimal"

	"macdbot/internal/strategy"
)

// State is the single persisted position record. It is mutated only by
// the Manager and survives restarts through the Store.
type State struct {
	PositionOpen      bool                 `json:"position_open"`
	Symbol            string               `json:"symbol"`
	Side              string               `json:"side"`
	Quantity          decimal.Decimal      `json:"quantity"`
	EntryPrice        decimal.Decimal      `json:"entry_price"`
	TakeProfitPrice   decimal.Decimal      `json:"take_profit_price"`
	StopLossPrice     decimal.Decimal      `json:"stop_loss_price"`
	TrailingStopPrice decimal.Decimal      `json:"trailing_stop_price"`
	LastSignal        strategy.SignalState `json:"last_signal"`
}

// Flat returns the flat default state for a symbol.
func Flat(symbol string) State {
	return State{
		Symbol:            symbol,
		Quantity:          decimal.Zero,
		EntryPrice:        decimal.Zero,
		TakeProfitPrice:   decimal.Zero,
		StopLossPrice:     decimal.Zero,
		TrailingStopPrice: decimal.Zero,
	}
}

// Validate enforces the state invariants. Loaders fail closed to the
// flat default on violation.
func (s State) Validate() error {
	switch s.LastSignal {
	case strategy.NoSignal, strategy.WaitDownwardCross, strategy.WaitUpwardCross, strategy.PositionOpen:
	default:
		return errors.New("unknown signal state")
	}
	if !s.PositionOpen {
		return nil
	}
	if !s.Quantity.IsPositive() {
		return errors.New("open position with non-positive quantity")
	}
	if s.EntryPrice.IsNegative() {
		return errors.New("open position with negative entry price")
	}
	if s.Symbol == "" {
		return errors.New("open position without symbol")
	}
	return nil
}
