// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:

mode: "live"
symbol: "BTCUSDT"
timeframe: "5m"
kline_limit: 200
macd_fast: 12
macd_slow: 26
macd_signal: 9
use_total_balance: false
deposit: 100
take_profit_percent: 5.0
stop_loss_percent: 3.0
trailing_stop_percent: 2.0
analyze_previous_candle: true
reset_on_close_failure: true
testnet: true
state_file: "state.json"
log_file: "macdbot.log"
*/

// Secrets are loaded from the environment (optionally via .env), never
// from the config file.
type Secrets struct {
	APIKey         string `envconfig:"BYBIT_API_KEY"`
	APISecret      string `envconfig:"BYBIT_API_SECRET"`
	DBConnStr      string `envconfig:"DB_CONN_STR"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID string `envconfig:"TELEGRAM_CHAT_ID"`
}

type Config struct {
	Mode      string `yaml:"mode"` // "live" or "paper"
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`

	// BaseAsset/QuoteAsset are derived from the symbol when empty.
	BaseAsset  string `yaml:"base_asset"`
	QuoteAsset string `yaml:"quote_asset"`

	KlineLimit int `yaml:"kline_limit"`

	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`

	UseTotalBalance bool    `yaml:"use_total_balance"`
	Deposit         float64 `yaml:"deposit"`

	TakeProfitPercent   float64 `yaml:"take_profit_percent"`
	StopLossPercent     float64 `yaml:"stop_loss_percent"`
	TrailingStopPercent float64 `yaml:"trailing_stop_percent"`

	AnalyzePreviousCandle bool `yaml:"analyze_previous_candle"`
	ResetOnCloseFailure   bool `yaml:"reset_on_close_failure"`
	Testnet               bool `yaml:"testnet"`

	StateFile string `yaml:"state_file"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`

	DBMaxOpen int `yaml:"db_max_open"`
	DBMaxIdle int `yaml:"db_max_idle"`

	NotificationRetries int `yaml:"notification_retries"`
	// NotificationDelay is flag-only: yaml.v3 has no native duration
	// decoding.
	NotificationDelay time.Duration `yaml:"-"`

	Secrets Secrets `yaml:"-"`
}

// Load builds the config from flags, optionally merged with a YAML
// file, plus secrets from the environment. The result is an immutable
// value passed into constructors.
func Load() (Config, error) {
	mode := flag.String("mode", "live", "Mode: live or paper")
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	timeframe := flag.String("timeframe", "5m", "Candle timeframe")
	klineLimit := flag.Int("kline-limit", 200, "Number of candles fetched per cycle")
	macdFast := flag.Int("macd-fast", 12, "MACD fast period")
	macdSlow := flag.Int("macd-slow", 26, "MACD slow period")
	macdSignal := flag.Int("macd-signal", 9, "MACD signal period")
	useTotalBalance := flag.Bool("use-total-balance", false, "Spend the full quote balance on every entry")
	deposit := flag.Float64("deposit", 100, "Fixed quote-currency deposit per entry")
	takeProfit := flag.Float64("take-profit-percent", 5.0, "Take profit percent (e.g., 5.0 for 5%)")
	stopLoss := flag.Float64("stop-loss-percent", 3.0, "Stop loss percent (e.g., 3.0 for 3%)")
	trailingStop := flag.Float64("trailing-stop-percent", 2.0, "Trailing stop percent (e.g., 2.0 for 2%)")
	analyzePrev := flag.Bool("analyze-previous-candle", true, "Analyze the last closed candle immediately at startup")
	resetOnCloseFailure := flag.Bool("reset-on-close-failure", true, "Clear local tracking even when the closing order fails")
	testnet := flag.Bool("testnet", true, "Use the Bybit testnet")
	stateFile := flag.String("state-file", "state.json", "Path of the persisted state file")
	logLevel := flag.String("log-level", "info", "Log level")
	logFile := flag.String("log-file", "macdbot.log", "Log file path (empty disables the file sink)")
	notificationRetries := flag.Int("notification-retries", 3, "Number of notification send attempts")
	notificationDelay := flag.Duration("notification-delay", 5*time.Second, "Delay between notification retries")
	configFile := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg := Config{
		Mode:                  *mode,
		Symbol:                *symbol,
		Timeframe:             *timeframe,
		KlineLimit:            *klineLimit,
		MACDFast:              *macdFast,
		MACDSlow:              *macdSlow,
		MACDSignal:            *macdSignal,
		UseTotalBalance:       *useTotalBalance,
		Deposit:               *deposit,
		TakeProfitPercent:     *takeProfit,
		StopLossPercent:       *stopLoss,
		TrailingStopPercent:   *trailingStop,
		AnalyzePreviousCandle: *analyzePrev,
		ResetOnCloseFailure:   *resetOnCloseFailure,
		Testnet:               *testnet,
		StateFile:             *stateFile,
		LogLevel:              *logLevel,
		LogFile:               *logFile,
		LogMaxSizeMB:          10,
		LogMaxBackups:         5,
		DBMaxOpen:             10,
		DBMaxIdle:             5,
		NotificationRetries:   *notificationRetries,
		NotificationDelay:     *notificationDelay,
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env is optional; missing files are fine.
	_ = godotenv.Load()
	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	cfg.deriveAssets()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var knownQuotes = []string{"USDT", "USDC", "BTC", "ETH", "EUR"}

func (c *Config) deriveAssets() {
	if c.BaseAsset != "" && c.QuoteAsset != "" {
		return
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(c.Symbol, quote) && len(c.Symbol) > len(quote) {
			c.BaseAsset = strings.TrimSuffix(c.Symbol, quote)
			c.QuoteAsset = quote
			return
		}
	}
}

// Validate rejects configurations the bot cannot safely run with.
// Validation failures are fatal at startup by design.
func (c Config) Validate() error {
	if c.Mode != "live" && c.Mode != "paper" {
		return fmt.Errorf("mode must be live or paper, got %q", c.Mode)
	}
	if c.Symbol == "" {
		return errors.New("symbol is required")
	}
	if c.BaseAsset == "" || c.QuoteAsset == "" {
		return fmt.Errorf("cannot derive base/quote assets from symbol %q; set base_asset and quote_asset", c.Symbol)
	}
	if c.Timeframe == "" {
		return errors.New("timeframe is required")
	}
	if c.KlineLimit <= 0 {
		return errors.New("kline_limit must be positive")
	}
	if c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 {
		return errors.New("MACD periods must be positive")
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("MACD fast period (%d) must be below the slow period (%d)", c.MACDFast, c.MACDSlow)
	}
	if !c.UseTotalBalance && c.Deposit <= 0 {
		return errors.New("deposit must be positive when use_total_balance is off")
	}
	if c.TakeProfitPercent < 0 || c.StopLossPercent < 0 || c.TrailingStopPercent < 0 {
		return errors.New("exit percentages cannot be negative")
	}
	if c.StateFile == "" {
		return errors.New("state_file is required")
	}
	if c.Mode == "live" && (c.Secrets.APIKey == "" || c.Secrets.APISecret == "") {
		return errors.New("BYBIT_API_KEY and BYBIT_API_SECRET are required in live mode")
	}
	return nil
}
