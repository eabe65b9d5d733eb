package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"macdbot/internal/candle"
	"macdbot/internal/config"
	"macdbot/internal/exchange"
	"macdbot/internal/instrument"
	"macdbot/internal/journal"
	"macdbot/internal/logger"
	"macdbot/internal/notifier"
	"macdbot/internal/order"
	"macdbot/internal/position"
	"macdbot/internal/risk"
	"macdbot/internal/state"
	"macdbot/internal/strategy"
	"macdbot/internal/tfutils"
)

// settleDelay gives the exchange time to finalize a candle after its
// close boundary before we fetch it.
const settleDelay = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !tfutils.IsValidTimeframe(cfg.Timeframe) {
		log.Fatalf("Config error: unsupported timeframe %q", cfg.Timeframe)
	}

	zlog, err := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ntf notifier.Notifier = notifier.Noop{}
	if cfg.Secrets.TelegramToken != "" && cfg.Secrets.TelegramChatID != "" {
		ntf = notifier.NewTelegramNotifier(cfg.Secrets.TelegramToken, cfg.Secrets.TelegramChatID,
			cfg.NotificationRetries, cfg.NotificationDelay)
	}

	var jrnl journal.Journaler = journal.Noop{}
	if cfg.Secrets.DBConnStr != "" {
		pg, err := journal.NewPostgres(cfg.Secrets.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			zlog.Fatalf("Main | Journal database unavailable: %v", err)
		}
		defer pg.Close()
		jrnl = pg
	}

	ex := buildExchange(cfg, zlog)
	zlog.Infof("Main | Starting on %s exchange: symbol=%s timeframe=%s MACD(%d,%d,%d)",
		ex.Name(), cfg.Symbol, cfg.Timeframe, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	manager := position.NewManager(
		position.Config{
			Symbol:              cfg.Symbol,
			BaseAsset:           cfg.BaseAsset,
			QuoteAsset:          cfg.QuoteAsset,
			ResetOnCloseFailure: cfg.ResetOnCloseFailure,
		},
		strategy.NewMACDStrategy(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		order.NewSizer(decimal.NewFromFloat(cfg.Deposit), cfg.UseTotalBalance),
		instrument.NewResolver(ex),
		risk.NewManager(risk.ParamsFromPercent(cfg.TakeProfitPercent, cfg.StopLossPercent, cfg.TrailingStopPercent)),
		ex,
		state.NewFileStore(cfg.StateFile),
		jrnl,
		ntf,
		zlog,
	)

	if err := manager.SyncOnStartup(ctx); err != nil {
		zlog.Fatalf("Main | Startup sync failed: %v", err)
	}

	if cfg.AnalyzePreviousCandle {
		zlog.Infof("Main | Analyzing the last closed candle")
		if err := runCycle(ctx, cfg, ex, manager, zlog); err != nil {
			zlog.Errorf("Main | Startup cycle failed: %v", err)
		}
	}

	runLoop(ctx, cfg, ex, manager, zlog)
	zlog.Infof("Main | Shut down cleanly")
}

func buildExchange(cfg config.Config, zlog *zap.SugaredLogger) exchange.Exchange {
	bybit := exchange.NewBybit(exchange.BybitOptions{
		APIKey:    cfg.Secrets.APIKey,
		APISecret: cfg.Secrets.APISecret,
		Testnet:   cfg.Testnet,
	}, zlog)
	if cfg.Mode == "paper" {
		// Real market data, simulated account.
		paper := exchange.NewPaper(cfg.Symbol, cfg.BaseAsset, cfg.QuoteAsset,
			decimal.NewFromInt(10_000), zlog)
		paper.SetMarketFeed(bybit)
		return paper
	}
	return bybit
}

// runLoop drives one decision cycle per candle close until the context
// is cancelled. All cycle failures are logged and the loop continues;
// only startup problems are fatal.
func runLoop(ctx context.Context, cfg config.Config, ex exchange.Exchange, manager *position.Manager, zlog *zap.SugaredLogger) {
	for {
		wait, err := timeToNextClose(ctx, cfg, ex)
		if err != nil {
			zlog.Errorf("Main | Server time unavailable: %v", err)
			wait = time.Minute
		} else {
			zlog.Infof("Main | Next candle closes in %s", wait.Round(time.Second))
		}

		select {
		case <-ctx.Done():
			zlog.Infof("Main | Interrupt received, stopping")
			return
		case <-time.After(wait + settleDelay):
		}

		if err := runCycle(ctx, cfg, ex, manager, zlog); err != nil {
			zlog.Errorf("Main | Cycle failed: %v", err)
		}
	}
}

func timeToNextClose(ctx context.Context, cfg config.Config, ex exchange.Exchange) (time.Duration, error) {
	serverTime, err := ex.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	return tfutils.SleepUntilClose(serverTime, cfg.Timeframe), nil
}

// runCycle fetches candles, keeps only closed bars, and hands the close
// series to the position manager for one decision.
func runCycle(ctx context.Context, cfg config.Config, ex exchange.Exchange, manager *position.Manager, zlog *zap.SugaredLogger) error {
	candles, err := ex.FetchCandles(ctx, cfg.Symbol, cfg.Timeframe, cfg.KlineLimit)
	if err != nil {
		return err
	}
	candles = candle.DropUnclosed(candles, time.Now().UTC())
	closes := candle.Closes(candles)
	zlog.Debugf("Main | %d closed candles fetched", len(closes))
	return manager.OnCandleClose(ctx, closes)
}
