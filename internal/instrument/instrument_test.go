package instrument

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	info Info
	err  error
}

func (f fakeSource) InstrumentInfo(_ context.Context, _ string) (Info, error) {
	return f.info, f.err
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSpec_QuantityExponent(t *testing.T) {
	cases := []struct {
		step string
		want int32
	}{
		{"0.001", -3},
		{"0.000001", -6},
		{"1", 0},
		{"0.1", -1},
	}
	for _, c := range cases {
		spec := Spec{QuantityStep: dec(c.step)}
		assert.Equal(t, c.want, spec.QuantityExponent(), "step %s", c.step)
	}
}

func TestSpec_TruncateQuantity(t *testing.T) {
	spec := Spec{QuantityStep: dec("0.001")}

	cases := []struct {
		in, want string
	}{
		{"0.0039", "0.003"},
		{"0.003", "0.003"},
		{"1.23456", "1.234"},
		{"0.0001", "0"},
	}
	for _, c := range cases {
		got := spec.TruncateQuantity(dec(c.in))
		assert.True(t, got.Equal(dec(c.want)), "truncate(%s) = %s, want %s", c.in, got, c.want)
	}
}

func TestResolver_Resolve(t *testing.T) {
	src := fakeSource{info: Info{
		Symbol:        "BTCUSDT",
		BasePrecision: "0.000001",
		MinOrderQty:   "0.000048",
		MinOrderAmt:   "1",
	}}

	spec, err := NewResolver(src).Resolve(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", spec.Symbol)
	assert.Equal(t, int32(-6), spec.QuantityExponent())
	assert.True(t, spec.MinOrderQty.Equal(dec("0.000048")))
	assert.True(t, spec.MinOrderAmt.Equal(dec("1")))
}

func TestResolver_ErrInstrumentData(t *testing.T) {
	cases := []struct {
		name string
		src  fakeSource
	}{
		{"source error", fakeSource{err: errors.New("boom")}},
		{"missing base precision", fakeSource{info: Info{Symbol: "X", MinOrderQty: "1", MinOrderAmt: "1"}}},
		{"missing min order qty", fakeSource{info: Info{Symbol: "X", BasePrecision: "0.01", MinOrderAmt: "1"}}},
		{"missing min order amt", fakeSource{info: Info{Symbol: "X", BasePrecision: "0.01", MinOrderQty: "1"}}},
		{"garbage precision", fakeSource{info: Info{Symbol: "X", BasePrecision: "abc", MinOrderQty: "1", MinOrderAmt: "1"}}},
		{"zero precision", fakeSource{info: Info{Symbol: "X", BasePrecision: "0", MinOrderQty: "1", MinOrderAmt: "1"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewResolver(c.src).Resolve(context.Background(), "X")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInstrumentData)
		})
	}
}
