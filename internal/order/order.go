// Package order
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of a spot market order, in the exchange's casing.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Receipt is the confirmed result of a placed order.
type Receipt struct {
	OrderID   string
	Symbol    string
	Side      Side
	Quantity  decimal.Decimal
	AvgPrice  decimal.Decimal
	Timestamp time.Time
}
