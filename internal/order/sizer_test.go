package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdbot/internal/instrument"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func btcSpec() instrument.Spec {
	return instrument.Spec{
		Symbol:       "BTCUSDT",
		QuantityStep: dec("0.000001"),
		MinOrderQty:  dec("0.000048"),
		MinOrderAmt:  dec("1"),
	}
}

func TestSizeBuy_TruncatesToStep(t *testing.T) {
	s := NewSizer(dec("100"), false)
	// 100 / 30000 = 0.00333... -> 0.003333 at a 6dp step.
	res := s.SizeBuy(btcSpec(), dec("1000"), dec("30000"))
	require.False(t, res.Rejected, "detail: %s", res.Detail)
	assert.True(t, res.Quantity.Equal(dec("0.003333")), "got %s", res.Quantity)

	// Truncation never rounds up: the result is always <= the raw quotient
	// and an exact multiple of the step.
	raw := dec("100").Div(dec("30000"))
	assert.True(t, res.Quantity.LessThanOrEqual(raw))
	rem := res.Quantity.Mod(dec("0.000001"))
	assert.True(t, rem.IsZero(), "remainder %s", rem)
}

func TestSizeBuy_ClampedToBalance(t *testing.T) {
	s := NewSizer(dec("100"), false)
	res := s.SizeBuy(btcSpec(), dec("30"), dec("30000"))
	require.False(t, res.Rejected)
	// Only 30 USDT available: 30 / 30000 = 0.001.
	assert.True(t, res.Quantity.Equal(dec("0.001")), "got %s", res.Quantity)
}

func TestSizeBuy_UseTotalBalance(t *testing.T) {
	s := NewSizer(dec("100"), true)
	res := s.SizeBuy(btcSpec(), dec("600"), dec("30000"))
	require.False(t, res.Rejected)
	assert.True(t, res.Quantity.Equal(dec("0.02")), "got %s", res.Quantity)
}

func TestSizeBuy_BelowMinimumNotional(t *testing.T) {
	spec := btcSpec()
	spec.MinOrderAmt = dec("60")

	s := NewSizer(dec("50"), false)
	res := s.SizeBuy(spec, dec("1000"), dec("30000"))
	require.True(t, res.Rejected)
	assert.Equal(t, RejectBelowMinimum, res.Reason)
}

func TestSizeBuy_ZeroAfterTruncation(t *testing.T) {
	spec := btcSpec()
	spec.QuantityStep = dec("0.001")

	// 1 / 30000 = 0.0000333 -> truncates to zero at a 3dp step.
	s := NewSizer(dec("1"), false)
	res := s.SizeBuy(spec, dec("1000"), dec("30000"))
	require.True(t, res.Rejected)
	assert.Equal(t, RejectZeroQuantity, res.Reason)
}

func TestSizeBuy_NoQuoteBalance(t *testing.T) {
	s := NewSizer(dec("100"), false)
	res := s.SizeBuy(btcSpec(), decimal.Zero, dec("30000"))
	require.True(t, res.Rejected)
	assert.Equal(t, RejectInsufficientFunds, res.Reason)
}

func TestSizeSell_FullBalanceTruncated(t *testing.T) {
	s := NewSizer(dec("100"), false)
	res := s.SizeSell(btcSpec(), dec("0.0033339"))
	require.False(t, res.Rejected)
	assert.True(t, res.Quantity.Equal(dec("0.003333")), "got %s", res.Quantity)
	assert.True(t, res.Quantity.LessThanOrEqual(dec("0.0033339")))
}

func TestSizeSell_DustBelowMinimum(t *testing.T) {
	s := NewSizer(dec("100"), false)

	res := s.SizeSell(btcSpec(), dec("0.00004"))
	require.True(t, res.Rejected)
	assert.Equal(t, RejectBelowMinimum, res.Reason)

	res = s.SizeSell(btcSpec(), dec("0.0000001"))
	require.True(t, res.Rejected)
	assert.Equal(t, RejectZeroQuantity, res.Reason)
}
