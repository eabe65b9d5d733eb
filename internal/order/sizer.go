package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"macdbot/internal/instrument"
)

// RejectReason classifies a non-fatal sizing rejection.
type RejectReason string

const (
	RejectInsufficientFunds RejectReason = "insufficient_funds"
	RejectBelowMinimum      RejectReason = "below_minimum"
	RejectZeroQuantity      RejectReason = "zero_quantity"
)

// Result is the outcome of sizing an order: an accepted quantity or a
// rejection. Rejections are normal business outcomes ("no trade this
// cycle"), never errors.
type Result struct {
	Quantity decimal.Decimal
	Rejected bool
	Reason   RejectReason
	Detail   string
}

func Accept(qty decimal.Decimal) Result {
	return Result{Quantity: qty}
}

func Reject(reason RejectReason, detail string) Result {
	return Result{Rejected: true, Reason: reason, Detail: detail}
}

// Sizer turns trade intent into exchange-compliant order quantities.
type Sizer struct {
	// Deposit is the fixed quote-currency amount spent per entry when
	// UseTotalBalance is off.
	Deposit decimal.Decimal

	// UseTotalBalance spends the full quote balance on every entry.
	UseTotalBalance bool
}

func NewSizer(deposit decimal.Decimal, useTotalBalance bool) *Sizer {
	return &Sizer{Deposit: deposit, UseTotalBalance: useTotalBalance}
}

// SizeBuy converts the configured quote deposit into a base-asset
// quantity at the given price, truncated to the instrument's step.
func (s *Sizer) SizeBuy(spec instrument.Spec, quoteBalance, price decimal.Decimal) Result {
	if !price.IsPositive() {
		return Reject(RejectZeroQuantity, fmt.Sprintf("non-positive price %s", price))
	}

	desired := s.Deposit
	if s.UseTotalBalance {
		desired = quoteBalance
	}
	// Never spend more than is actually available.
	if desired.GreaterThan(quoteBalance) {
		desired = quoteBalance
	}
	if !desired.IsPositive() {
		return Reject(RejectInsufficientFunds, fmt.Sprintf("quote balance %s", quoteBalance))
	}

	qty := spec.TruncateQuantity(desired.Div(price))
	if !qty.IsPositive() {
		return Reject(RejectZeroQuantity, fmt.Sprintf("%s truncates to zero at step %s", desired.Div(price), spec.QuantityStep))
	}

	notional := qty.Mul(price)
	if notional.LessThan(spec.MinOrderAmt) {
		return Reject(RejectBelowMinimum, fmt.Sprintf("notional %s below minimum order amount %s", notional, spec.MinOrderAmt))
	}

	return Accept(qty)
}

// SizeSell sizes a full exit: the entire base-asset balance, truncated
// to the instrument's step. No partial sells.
func (s *Sizer) SizeSell(spec instrument.Spec, baseBalance decimal.Decimal) Result {
	qty := spec.TruncateQuantity(baseBalance)
	if !qty.IsPositive() {
		return Reject(RejectZeroQuantity, fmt.Sprintf("base balance %s truncates to zero at step %s", baseBalance, spec.QuantityStep))
	}
	if qty.LessThan(spec.MinOrderQty) {
		return Reject(RejectBelowMinimum, fmt.Sprintf("quantity %s below minimum order quantity %s", qty, spec.MinOrderQty))
	}
	return Accept(qty)
}
