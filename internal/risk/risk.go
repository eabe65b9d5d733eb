// Package risk
package risk

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Params are the static exit percentages, anchored to the entry price.
type Params struct {
	TakeProfitPct   decimal.Decimal
	StopLossPct     decimal.Decimal
	TrailingStopPct decimal.Decimal
}

// ParamsFromPercent builds Params from plain float percentages
// (e.g. 5 for 5%).
func ParamsFromPercent(takeProfit, stopLoss, trailingStop float64) Params {
	return Params{
		TakeProfitPct:   decimal.NewFromFloat(takeProfit),
		StopLossPct:     decimal.NewFromFloat(stopLoss),
		TrailingStopPct: decimal.NewFromFloat(trailingStop),
	}
}

// Levels are the exit thresholds tracked for an open long position.
// TrailingStop starts at the stop-loss level and only ever ratchets up.
type Levels struct {
	TakeProfit   decimal.Decimal
	StopLoss     decimal.Decimal
	TrailingStop decimal.Decimal
}

// ExitReason names which threshold closed the position.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
)

// Evaluation is the outcome of checking an open position against the
// latest price.
type Evaluation struct {
	Close     bool
	Reason    ExitReason
	Ratcheted bool
	// Levels carries the (possibly ratcheted) thresholds the caller
	// must persist.
	Levels Levels
}

// Manager computes and evaluates exit levels for long positions.
type Manager struct {
	params Params
}

func NewManager(p Params) *Manager {
	return &Manager{params: p}
}

// LevelsFor computes the initial exit thresholds for a fill at entry.
func (m *Manager) LevelsFor(entry decimal.Decimal) Levels {
	tp := entry.Mul(hundred.Add(m.params.TakeProfitPct)).Div(hundred)
	sl := entry.Mul(hundred.Sub(m.params.StopLossPct)).Div(hundred)
	return Levels{TakeProfit: tp, StopLoss: sl, TrailingStop: sl}
}

// Evaluate checks the thresholds against the latest close, in fixed
// priority order: take-profit, stop-loss, trailing ratchet, trailing
// stop. At most one close path fires per call.
//
// Zero levels can appear after a crash recovery that lost the entry
// price; a zero threshold is never treated as a trigger.
func (m *Manager) Evaluate(lvl Levels, price decimal.Decimal) Evaluation {
	if lvl.TakeProfit.IsPositive() && price.GreaterThanOrEqual(lvl.TakeProfit) {
		return Evaluation{Close: true, Reason: ExitTakeProfit, Levels: lvl}
	}
	if lvl.StopLoss.IsPositive() && price.LessThanOrEqual(lvl.StopLoss) {
		return Evaluation{Close: true, Reason: ExitStopLoss, Levels: lvl}
	}
	if lvl.TrailingStop.IsPositive() && price.GreaterThan(lvl.TrailingStop) {
		// Ratchet: the trailing stop follows the price up and never
		// moves down.
		candidate := price.Mul(hundred.Sub(m.params.TrailingStopPct)).Div(hundred)
		if candidate.GreaterThan(lvl.TrailingStop) {
			lvl.TrailingStop = candidate
			return Evaluation{Ratcheted: true, Levels: lvl}
		}
		return Evaluation{Levels: lvl}
	}
	if lvl.TrailingStop.IsPositive() && price.LessThanOrEqual(lvl.TrailingStop) {
		return Evaluation{Close: true, Reason: ExitTrailingStop, Levels: lvl}
	}
	return Evaluation{Levels: lvl}
}
