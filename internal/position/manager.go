package position

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"macdbot/internal/instrument"
	"macdbot/internal/journal"
	"macdbot/internal/notifier"
	"macdbot/internal/order"
	"macdbot/internal/risk"
	"macdbot/internal/strategy"
)

// Store persists bot state across restarts.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// Gateway is the slice of the exchange the position manager needs.
type Gateway interface {
	AssetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side order.Side, qty decimal.Decimal) (order.Receipt, error)
}

// Config for the position manager.
type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	// ResetOnCloseFailure clears local tracking even when the closing
	// sell order fails. This mirrors the historical behavior; turning
	// it off keeps the position open locally so the close is retried
	// on the next cycle.
	ResetOnCloseFailure bool
}

// Manager owns the persisted position state and drives the
// Flat <-> Open transitions. One decision cycle at a time; no method
// is safe for concurrent use.
type Manager struct {
	cfg      Config
	strat    *strategy.MACDStrategy
	sizer    *order.Sizer
	resolver *instrument.Resolver
	risk     *risk.Manager
	gw       Gateway
	store    Store
	journal  journal.Journaler
	notifier notifier.Notifier
	log      *zap.SugaredLogger

	state State
}

func NewManager(
	cfg Config,
	strat *strategy.MACDStrategy,
	sizer *order.Sizer,
	resolver *instrument.Resolver,
	riskMgr *risk.Manager,
	gw Gateway,
	store Store,
	jrnl journal.Journaler,
	ntf notifier.Notifier,
	log *zap.SugaredLogger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		strat:    strat,
		sizer:    sizer,
		resolver: resolver,
		risk:     riskMgr,
		gw:       gw,
		store:    store,
		journal:  jrnl,
		notifier: ntf,
		log:      log,
		state:    Flat(cfg.Symbol),
	}
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	return m.state
}

// SyncOnStartup reconciles persisted state with exchange truth: if the
// base-asset balance is at least the instrument's minimum order
// quantity, an open position is adopted with that balance as quantity;
// otherwise the state is forced flat. Sync failures also force flat: a
// missed position is recoverable, a phantom one blocks entries forever.
func (m *Manager) SyncOnStartup(ctx context.Context) error {
	persisted, err := m.store.Load()
	if err != nil {
		m.log.Warnf("Position | Persisted state unreadable, starting from flat: %v", err)
		persisted = Flat(m.cfg.Symbol)
	}
	if persisted.Symbol == "" {
		persisted.Symbol = m.cfg.Symbol
	}

	balance, err := m.gw.AssetBalance(ctx, m.cfg.BaseAsset)
	if err != nil {
		m.log.Warnf("Position | Startup sync: balance check failed, forcing flat: %v", err)
		m.state = Flat(m.cfg.Symbol)
		return m.persist()
	}
	spec, err := m.resolver.Resolve(ctx, m.cfg.Symbol)
	if err != nil {
		m.log.Warnf("Position | Startup sync: precision lookup failed, forcing flat: %v", err)
		m.state = Flat(m.cfg.Symbol)
		return m.persist()
	}

	if balance.GreaterThanOrEqual(spec.MinOrderQty) {
		st := persisted
		st.PositionOpen = true
		st.Symbol = m.cfg.Symbol
		st.Side = string(order.Buy)
		st.Quantity = balance
		st.LastSignal = strategy.PositionOpen
		// EntryPrice stays whatever was last persisted (possibly zero
		// after a crash); risk evaluation guards against zero levels.
		m.state = st
		m.log.Infof("Position | Startup sync: adopted open position, qty=%s entry=%s", st.Quantity, st.EntryPrice)
	} else {
		st := Flat(m.cfg.Symbol)
		if !persisted.PositionOpen {
			// A persisted armed/waiting signal state is still valid.
			st.LastSignal = persisted.LastSignal
		}
		m.state = st
		m.log.Infof("Position | Startup sync: flat (%s balance %s below min qty %s)", m.cfg.BaseAsset, balance, spec.MinOrderQty)
	}
	return m.persist()
}

// OnCandleClose runs one decision cycle over a closed-candle close
// series, oldest-first. With a position open, risk exits are evaluated
// against the latest close before the signal engine is consulted; at
// most one state transition happens per cycle.
func (m *Manager) OnCandleClose(ctx context.Context, closes []float64) error {
	if len(closes) == 0 {
		return fmt.Errorf("empty close series")
	}
	price := decimal.NewFromFloat(closes[len(closes)-1])

	if m.state.PositionOpen {
		done, err := m.evaluateRisk(ctx, price)
		if err != nil || done {
			return err
		}
	}

	decision, macdVal, sigVal, err := m.strat.Decide(m.state.LastSignal, closes)
	if err != nil {
		return fmt.Errorf("signal evaluation: %w", err)
	}
	m.log.Infof("Signal | %s MACD=%.6f Signal=%.6f state=%s -> intent=%s (%s)",
		m.cfg.Symbol, macdVal, sigVal, m.state.LastSignal, decision.Intent, decision.Reason)

	switch decision.Intent {
	case strategy.IntentOpenLong:
		return m.openLong(ctx, decision)
	case strategy.IntentCloseLong:
		return m.closeLong(ctx, price, "signal", decision.Next)
	default:
		if decision.Next != m.state.LastSignal {
			m.state.LastSignal = decision.Next
			return m.persist()
		}
		return nil
	}
}

// evaluateRisk checks TP/SL/trailing against the latest close. Returns
// done=true when a close fired, ending the cycle: one transition per
// cycle, so a risk exit never chains into a same-cycle re-entry.
func (m *Manager) evaluateRisk(ctx context.Context, price decimal.Decimal) (bool, error) {
	ev := m.risk.Evaluate(m.levels(), price)
	if ev.Ratcheted {
		m.state.TrailingStopPrice = ev.Levels.TrailingStop
		m.log.Infof("Risk | %s trailing stop ratcheted to %s (price %s)", m.cfg.Symbol, ev.Levels.TrailingStop, price)
		if err := m.persist(); err != nil {
			m.log.Errorf("Position | Persisting ratcheted trailing stop failed: %v", err)
		}
	}
	if !ev.Close {
		return false, nil
	}
	m.log.Infof("Risk | %s %s hit at price %s (tp=%s sl=%s ts=%s)",
		m.cfg.Symbol, ev.Reason, price, m.state.TakeProfitPrice, m.state.StopLossPrice, m.state.TrailingStopPrice)
	return true, m.closeLong(ctx, price, string(ev.Reason), strategy.WaitUpwardCross)
}

func (m *Manager) levels() risk.Levels {
	return risk.Levels{
		TakeProfit:   m.state.TakeProfitPrice,
		StopLoss:     m.state.StopLossPrice,
		TrailingStop: m.state.TrailingStopPrice,
	}
}

// openLong runs the Flat -> Open transition: resolve precision, size
// the buy, place the order, then derive risk levels and persist. Sizing
// rejections end the cycle without a trade; a precision failure aborts
// the cycle with no order attempted.
func (m *Manager) openLong(ctx context.Context, decision strategy.Decision) error {
	if m.state.PositionOpen {
		return fmt.Errorf("open-long intent with position already open")
	}

	spec, err := m.resolver.Resolve(ctx, m.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("resolving precision before entry: %w", err)
	}
	quoteBalance, err := m.gw.AssetBalance(ctx, m.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("fetching %s balance: %w", m.cfg.QuoteAsset, err)
	}
	lastPrice, err := m.gw.LastPrice(ctx, m.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetching last price: %w", err)
	}

	res := m.sizer.SizeBuy(spec, quoteBalance, lastPrice)
	if res.Rejected {
		m.log.Warnf("Order | %s buy rejected (%s): %s", m.cfg.Symbol, res.Reason, res.Detail)
		m.logEvent(ctx, "signal", "entry_rejected", map[string]any{
			"symbol": m.cfg.Symbol, "reason": string(res.Reason), "detail": res.Detail,
		})
		return nil
	}

	receipt, err := m.gw.PlaceMarketOrder(ctx, m.cfg.Symbol, order.Buy, res.Quantity)
	if err != nil {
		// No trade occurred; state stays flat and the signal stays armed.
		m.log.Errorf("Order | %s buy of %s failed: %v", m.cfg.Symbol, res.Quantity, err)
		m.logEvent(ctx, "error", "entry_order_failed", map[string]any{
			"symbol": m.cfg.Symbol, "qty": res.Quantity.String(), "error": err.Error(),
		})
		m.notify(fmt.Sprintf("ERROR: entry order failed for %s: %v", m.cfg.Symbol, err))
		return nil
	}

	entry := receipt.AvgPrice
	if !entry.IsPositive() {
		entry = lastPrice
	}
	levels := m.risk.LevelsFor(entry)

	m.state = State{
		PositionOpen:      true,
		Symbol:            m.cfg.Symbol,
		Side:              string(order.Buy),
		Quantity:          res.Quantity,
		EntryPrice:        entry,
		TakeProfitPrice:   levels.TakeProfit,
		StopLossPrice:     levels.StopLoss,
		TrailingStopPrice: levels.TrailingStop,
		LastSignal:        decision.Next,
	}
	if err := m.persist(); err != nil {
		m.log.Errorf("Position | Persisting open position failed: %v", err)
	}

	m.log.Infof("Position | %s opened: qty=%s entry=%s tp=%s sl=%s ts=%s",
		m.cfg.Symbol, res.Quantity, entry, levels.TakeProfit, levels.StopLoss, levels.TrailingStop)
	m.logEvent(ctx, "order", "entry_order_filled", map[string]any{
		"symbol": m.cfg.Symbol, "side": "Buy", "qty": res.Quantity.String(),
		"entry": entry.String(), "order_id": receipt.OrderID,
	})
	m.notify(fmt.Sprintf("[ORDER FILLED]\nSide: Buy\nSymbol: %s\nQty: %s\nAvgPrice: %s\nTP: %s SL: %s\nTime: %s",
		m.cfg.Symbol, res.Quantity, entry, levels.TakeProfit, levels.StopLoss, time.Now().Format(time.RFC3339)))
	return nil
}

// closeLong runs the Open -> Flat transition: sell the full base-asset
// balance and reset local tracking. Whether tracking is cleared on a
// failed sell is governed by Config.ResetOnCloseFailure.
func (m *Manager) closeLong(ctx context.Context, price decimal.Decimal, trigger string, next strategy.SignalState) error {
	spec, err := m.resolver.Resolve(ctx, m.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("resolving precision before exit: %w", err)
	}
	baseBalance, err := m.gw.AssetBalance(ctx, m.cfg.BaseAsset)
	if err != nil {
		return fmt.Errorf("fetching %s balance: %w", m.cfg.BaseAsset, err)
	}

	res := m.sizer.SizeSell(spec, baseBalance)
	if res.Rejected {
		m.log.Warnf("Order | %s sell rejected (%s): %s", m.cfg.Symbol, res.Reason, res.Detail)
		m.logEvent(ctx, "signal", "exit_rejected", map[string]any{
			"symbol": m.cfg.Symbol, "trigger": trigger, "reason": string(res.Reason), "detail": res.Detail,
		})
		return nil
	}

	entry := m.state.EntryPrice
	qty := m.state.Quantity
	receipt, err := m.gw.PlaceMarketOrder(ctx, m.cfg.Symbol, order.Sell, res.Quantity)
	if err != nil {
		m.log.Errorf("Order | %s sell of %s failed: %v", m.cfg.Symbol, res.Quantity, err)
		m.logEvent(ctx, "error", "exit_order_failed", map[string]any{
			"symbol": m.cfg.Symbol, "trigger": trigger, "qty": res.Quantity.String(), "error": err.Error(),
		})
		m.notify(fmt.Sprintf("ERROR: exit order failed for %s: %v", m.cfg.Symbol, err))
		if !m.cfg.ResetOnCloseFailure {
			return nil
		}
		// Historical behavior: clear local tracking regardless. The
		// exchange position may still be live; the startup sync will
		// re-adopt it on the next restart.
		m.log.Warnf("Position | Clearing local tracking despite failed close order")
	}

	exit := price
	if err == nil && receipt.AvgPrice.IsPositive() {
		exit = receipt.AvgPrice
	}
	pnl := exit.Sub(entry).Mul(qty)

	flat := Flat(m.cfg.Symbol)
	flat.LastSignal = next
	m.state = flat
	if perr := m.persist(); perr != nil {
		m.log.Errorf("Position | Persisting flat state failed: %v", perr)
	}

	if err == nil {
		m.log.Infof("Position | %s closed (%s): qty=%s entry=%s exit=%s pnl=%s",
			m.cfg.Symbol, trigger, res.Quantity, entry, exit, pnl)
		m.logEvent(ctx, "order", "exit_order_filled", map[string]any{
			"symbol": m.cfg.Symbol, "trigger": trigger, "qty": res.Quantity.String(),
			"entry": entry.String(), "exit": exit.String(), "pnl": pnl.String(), "order_id": receipt.OrderID,
		})
		m.notify(fmt.Sprintf("[ORDER FILLED]\nSide: Sell\nSymbol: %s\nQty: %s\nAvgPrice: %s\nEvent: %s\nPnL: %s\nTime: %s",
			m.cfg.Symbol, res.Quantity, exit, trigger, pnl, time.Now().Format(time.RFC3339)))
	}
	return nil
}

func (m *Manager) persist() error {
	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (m *Manager) logEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if m.journal == nil {
		return
	}
	err := m.journal.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	})
	if err != nil {
		m.log.Errorf("Position | Error logging event: %v", err)
	}
}

func (m *Manager) notify(msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendWithRetry(msg); err != nil {
		m.log.Errorf("Position | Error sending notification: %v", err)
	}
}
