package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() Config {
	return Config{
		Mode:                "paper",
		Symbol:              "BTCUSDT",
		Timeframe:           "5m",
		BaseAsset:           "BTC",
		QuoteAsset:          "USDT",
		KlineLimit:          200,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		Deposit:             100,
		TakeProfitPercent:   5,
		StopLossPercent:     3,
		TrailingStopPercent: 2,
		StateFile:           "state.json",
	}
}

func TestDeriveAssets(t *testing.T) {
	cases := []struct {
		symbol      string
		base, quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHUSDC", "ETH", "USDC"},
		{"ETHBTC", "ETH", "BTC"},
		{"SOLEUR", "SOL", "EUR"},
		{"USDT", "", ""}, // quote alone is not a pair
		{"XYZABC", "", ""},
	}
	for _, c := range cases {
		cfg := Config{Symbol: c.symbol}
		cfg.deriveAssets()
		assert.Equal(t, c.base, cfg.BaseAsset, c.symbol)
		assert.Equal(t, c.quote, cfg.QuoteAsset, c.symbol)
	}
}

func TestDeriveAssets_ExplicitOverride(t *testing.T) {
	cfg := Config{Symbol: "BTCUSDT", BaseAsset: "XBT", QuoteAsset: "USD"}
	cfg.deriveAssets()
	assert.Equal(t, "XBT", cfg.BaseAsset)
	assert.Equal(t, "USD", cfg.QuoteAsset)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "backtest" }},
		{"empty symbol", func(c *Config) { c.Symbol = "" }},
		{"underivable assets", func(c *Config) { c.BaseAsset = ""; c.QuoteAsset = "" }},
		{"empty timeframe", func(c *Config) { c.Timeframe = "" }},
		{"zero kline limit", func(c *Config) { c.KlineLimit = 0 }},
		{"zero macd period", func(c *Config) { c.MACDFast = 0 }},
		{"fast not below slow", func(c *Config) { c.MACDFast = 26; c.MACDSlow = 26 }},
		{"zero deposit", func(c *Config) { c.Deposit = 0 }},
		{"negative take profit", func(c *Config) { c.TakeProfitPercent = -1 }},
		{"empty state file", func(c *Config) { c.StateFile = "" }},
		{"live without keys", func(c *Config) { c.Mode = "live" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_TotalBalanceNeedsNoDeposit(t *testing.T) {
	cfg := validConfig()
	cfg.UseTotalBalance = true
	cfg.Deposit = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_LiveWithKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "live"
	cfg.Secrets.APIKey = "k"
	cfg.Secrets.APISecret = "s"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	body := []byte(`
mode: "paper"
symbol: "ETHUSDT"
timeframe: "1h"
kline_limit: 300
macd_fast: 8
macd_slow: 21
macd_signal: 5
use_total_balance: true
take_profit_percent: 4.5
reset_on_close_failure: false
state_file: "eth-state.json"
`)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(body, &cfg))
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "1h", cfg.Timeframe)
	assert.Equal(t, 300, cfg.KlineLimit)
	assert.Equal(t, 8, cfg.MACDFast)
	assert.True(t, cfg.UseTotalBalance)
	assert.Equal(t, 4.5, cfg.TakeProfitPercent)
	assert.False(t, cfg.ResetOnCloseFailure)
}
