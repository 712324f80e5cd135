package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rajchodisetti/riskguard/internal/observ"
	"github.com/Rajchodisetti/riskguard/pkg/id"
)

// EngineState is the engine lifecycle state. EMERGENCY dominates: it persists
// across Stop/Start and only an explicit external reset clears it.
type EngineState string

const (
	StateStopped   EngineState = "stopped"
	StateRunning   EngineState = "running"
	StateEmergency EngineState = "emergency"
)

// Config configures the engine. Zero values fall back to defaults in
// NewEngine; Limits must validate.
type Config struct {
	Limits      Limits  `yaml:"limits" json:"limits"`
	CapitalBase float64 `yaml:"capital_base" json:"capital_base"`

	MonitorIntervalMs      int `yaml:"monitor_interval_ms" json:"monitor_interval_ms"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds" json:"cleanup_interval_seconds"`
	TradeMaxAgeSeconds     int `yaml:"trade_max_age_seconds" json:"trade_max_age_seconds"`

	PriceWindowSize int `yaml:"price_window_size" json:"price_window_size"`
	TradeWindowSize int `yaml:"trade_window_size" json:"trade_window_size"`
	SnapshotHistory int `yaml:"snapshot_history" json:"snapshot_history"`
	AlertHistory    int `yaml:"alert_history" json:"alert_history"`

	AdmissionBudgetMs int `yaml:"admission_budget_ms" json:"admission_budget_ms"`
}

func (c Config) withDefaults() Config {
	if c.CapitalBase == 0 {
		c.CapitalBase = 1000000
	}
	if c.MonitorIntervalMs == 0 {
		c.MonitorIntervalMs = 100
	}
	if c.CleanupIntervalSeconds == 0 {
		c.CleanupIntervalSeconds = 300
	}
	if c.TradeMaxAgeSeconds == 0 {
		c.TradeMaxAgeSeconds = 3600
	}
	if c.PriceWindowSize == 0 {
		c.PriceWindowSize = 600
	}
	if c.TradeWindowSize == 0 {
		c.TradeWindowSize = 1000
	}
	if c.SnapshotHistory == 0 {
		c.SnapshotHistory = 100
	}
	if c.AlertHistory == 0 {
		c.AlertHistory = 200
	}
	if c.AdmissionBudgetMs == 0 {
		c.AdmissionBudgetMs = 5
	}
	return c
}

// RiskStatus is the read-only projection returned to external callers.
// Everything in it is a copy; mutating it cannot touch engine state.
type RiskStatus struct {
	Timestamp       time.Time           `json:"timestamp"`
	State           EngineState         `json:"state"`
	Emergency       bool                `json:"emergency"`
	EmergencyReason string              `json:"emergency_reason,omitempty"`
	PortfolioValue  float64             `json:"portfolio_value"`
	DailyPnl        float64             `json:"daily_pnl"`
	TotalPnl        float64             `json:"total_pnl"`
	PeakValue       float64             `json:"peak_value"`
	MaxDrawdown     float64             `json:"max_drawdown"`
	Positions       map[string]Position `json:"positions"`
	RecentSnapshots []Snapshot          `json:"recent_snapshots"`
	RecentAlerts    []Alert             `json:"recent_alerts"`
	RecentTrades    []TradeEvent        `json:"recent_trades"`
	Limits          Limits              `json:"limits"`
}

// Engine owns all mutable risk state and serializes every mutation under one
// engine-wide lock, so an admission check always observes the most recent
// completed update. Two background loops run while started: the monitoring
// tick (portfolio-level checks, ~100ms) and the cleanup tick (trade-history
// aging, ~5m). Stop cancels both and waits for in-flight iterations.
type Engine struct {
	mu  sync.RWMutex
	cfg Config

	store      *RollingStore
	calc       *Calculator
	eval       *Evaluator
	controller *EmergencyController
	ledger     *Ledger
	gate       *Gate
	bus        *Bus

	snapshots []Snapshot
	alertLog  []Alert

	running bool
	cancel  context.CancelFunc
	wg      *sync.WaitGroup // per-run: replaced on every Start

	// pendingEmergency holds the trip alert between the locked state change
	// and the post-unlock synchronous publish.
	pendingEmergency *Alert

	clock func() time.Time
}

// NewEngine validates the configuration and wires the components. The
// returned engine is STOPPED; rolling windows start empty.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	cfg = cfg.withDefaults()
	if cfg.CapitalBase <= 0 {
		return nil, fmt.Errorf("engine config: capital_base must be positive, got %v", cfg.CapitalBase)
	}

	e := &Engine{
		cfg:    cfg,
		store:  NewRollingStore(cfg.PriceWindowSize, cfg.TradeWindowSize),
		eval:   NewEvaluator(cfg.Limits),
		ledger: NewLedger(cfg.CapitalBase),
		gate:   NewGate(cfg.Limits),
		bus:    NewBus(),
		clock:  time.Now,
	}
	e.calc = NewCalculator(e.store)
	e.controller = NewEmergencyController(func(a Alert) {
		// Runs under the engine lock: record now, publish after unlock.
		e.recordAlertLocked(a)
		e.pendingEmergency = &a
	})
	return e, nil
}

// Start launches the background loops. Idempotent. Starting does not clear an
// emergency: the engine comes up denying if it was tripped.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	wg := &sync.WaitGroup{}
	e.wg = wg
	wg.Add(2)
	go e.monitorLoop(ctx, wg)
	go e.cleanupLoop(ctx, wg)
	observ.Log("engine_started", map[string]any{
		"capital_base":   e.cfg.CapitalBase,
		"monitor_ms":     e.cfg.MonitorIntervalMs,
		"cleanup_s":      e.cfg.CleanupIntervalSeconds,
		"emergency_held": e.controller.Tripped(),
	})
	return nil
}

// Stop cancels both loops and waits for their current iteration to finish,
// so no tick is left half-applied. Idempotent. Does not clear EMERGENCY.
//
// running flips to false under the same lock acquisition that claims the
// stop, so a Start racing this Stop begins a fresh run (with its own
// WaitGroup generation) instead of no-opping against a dying one.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	wg := e.wg
	e.mu.Unlock()

	cancel()
	wg.Wait()
	observ.Log("engine_stopped", nil)
	return nil
}

// State reports the lifecycle state; EMERGENCY wins over running/stopped.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() EngineState {
	if e.controller.Tripped() {
		return StateEmergency
	}
	if e.running {
		return StateRunning
	}
	return StateStopped
}

// UpdateMarketData ingests a tick: append to the rolling window, mark the
// ledger, compute a snapshot, evaluate alerts, maybe trip the breaker. Runs
// to completion with no internal suspension, so an admission check issued
// right after observes this update.
func (e *Engine) UpdateMarketData(symbol string, price, volume float64) {
	if price <= 0 {
		observ.Warn("market_data_ignored", map[string]any{"symbol": symbol, "price": price})
		observ.IncCounter("market_data_ignored_total", nil)
		return
	}
	now := e.clock()

	e.mu.Lock()
	e.store.Append(symbol, price, volume, now)
	e.ledger.Mark(symbol, price)

	snap := e.calc.Compute(symbol, price, e.ledger.View(symbol), now)
	e.snapshots = append(e.snapshots, snap)
	if len(e.snapshots) > e.cfg.SnapshotHistory {
		e.snapshots = e.snapshots[len(e.snapshots)-e.cfg.SnapshotHistory:]
	}

	alerts, tripReason := e.eval.Evaluate(snap)
	for _, a := range alerts {
		e.recordAlertLocked(a)
	}
	if tripReason != "" {
		e.controller.Trip(symbol, tripReason, now)
	}
	emergency := e.takePendingLocked()

	observ.SetGauge("risk_score", snap.RiskScore, map[string]string{"symbol": symbol})
	observ.SetGauge("volatility", snap.Volatility, map[string]string{"symbol": symbol})
	e.mu.Unlock()

	for _, a := range alerts {
		e.bus.Publish(a)
	}
	if emergency != nil {
		e.bus.Publish(*emergency)
	}
}

// UpdatePosition applies a position snapshot (last-write-wins size) from a
// fill and books the trade event used by accounting and the rate window.
func (e *Engine) UpdatePosition(symbol string, positionSize, tradePrice float64) {
	if tradePrice <= 0 {
		observ.Warn("position_update_ignored", map[string]any{"symbol": symbol, "price": tradePrice})
		return
	}
	now := e.clock()

	e.mu.Lock()
	e.ledger.Update(symbol, positionSize, tradePrice, now)
	e.store.RecordTrade(TradeEvent{Timestamp: now, Symbol: symbol, Size: positionSize, Price: tradePrice})
	value := e.ledger.PortfolioValue()
	daily := e.ledger.DailyPnl()
	e.mu.Unlock()

	observ.SetGauge("portfolio_value", value, nil)
	observ.SetGauge("daily_pnl", daily, nil)
	observ.IncCounter("position_updates_total", map[string]string{"symbol": symbol})
}

// CheckPreTradeRisk runs the admission gate against current engine state.
// Denials are results, not errors; the engine keeps running either way.
func (e *Engine) CheckPreTradeRisk(symbol string, orderSize, orderPrice float64) (bool, string) {
	start := time.Now()
	now := e.clock()

	e.mu.RLock()
	lastTrade, _ := e.store.LastTradeTime()
	in := AdmissionInput{
		Symbol:           symbol,
		OrderSize:        orderSize,
		OrderPrice:       orderPrice,
		Now:              now,
		Emergency:        e.controller.Tripped(),
		EmergencyReason:  e.controller.Reason(),
		LastTrade:        lastTrade,
		TradesLastMinute: e.store.TradesInWindow(time.Minute, now),
		PositionSize:     e.ledger.PositionSize(symbol),
		PortfolioValue:   e.ledger.PortfolioValue(),
		DailyPnl:         e.ledger.DailyPnl(),
		TotalPnl:         e.ledger.TotalPnl(),
	}
	e.mu.RUnlock()

	allowed, reason := e.gate.Check(in)

	elapsed := time.Since(start)
	observ.ObserveDuration("pretrade_check", elapsed, nil)
	observ.IncCounter("pretrade_checks_total", map[string]string{"allowed": fmt.Sprintf("%t", allowed)})
	if budget := time.Duration(e.cfg.AdmissionBudgetMs) * time.Millisecond; elapsed > budget {
		observ.Warn("pretrade_check_slow", map[string]any{
			"elapsed_ms": float64(elapsed.Microseconds()) / 1000.0,
			"budget_ms":  e.cfg.AdmissionBudgetMs,
		})
	}
	if !allowed {
		observ.Log("pretrade_denied", map[string]any{
			"decision_id": id.New(),
			"symbol":      symbol,
			"order_size":  orderSize,
			"order_price": orderPrice,
			"reason":      reason,
		})
	}
	return allowed, reason
}

// EmergencyShutdown manually trips the breaker.
func (e *Engine) EmergencyShutdown(reason string) {
	now := e.clock()
	e.mu.Lock()
	e.controller.Trip("", fmt.Sprintf("manual: %s", reason), now)
	emergency := e.takePendingLocked()
	e.mu.Unlock()
	if emergency != nil {
		e.bus.Publish(*emergency)
	}
}

// ResetEmergency clears the breaker. This is the explicit external reset the
// bridge exposes; nothing inside the engine calls it.
func (e *Engine) ResetEmergency(operator, reason string) error {
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller.Reset(operator, reason, now)
}

// AddAlertCallback subscribes fn to every alert; returns the handle for
// RemoveCallback.
func (e *Engine) AddAlertCallback(fn AlertCallback) int {
	return e.bus.Subscribe(fn)
}

// AddEmergencyCallback subscribes fn to EMERGENCY alerts only.
func (e *Engine) AddEmergencyCallback(fn AlertCallback) int {
	return e.bus.SubscribeEmergency(fn)
}

// RemoveCallback unsubscribes a handle from either registry.
func (e *Engine) RemoveCallback(handle int) {
	e.bus.Unsubscribe(handle)
}

// Status returns a copy-only projection of engine state, safe to serialize.
func (e *Engine) Status() RiskStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snaps := make([]Snapshot, len(e.snapshots))
	copy(snaps, e.snapshots)
	alerts := make([]Alert, len(e.alertLog))
	copy(alerts, e.alertLog)

	return RiskStatus{
		Timestamp:       e.clock(),
		State:           e.stateLocked(),
		Emergency:       e.controller.Tripped(),
		EmergencyReason: e.controller.Reason(),
		PortfolioValue:  e.ledger.PortfolioValue(),
		DailyPnl:        e.ledger.DailyPnl(),
		TotalPnl:        e.ledger.TotalPnl(),
		PeakValue:       e.ledger.PeakValue(),
		MaxDrawdown:     e.ledger.MaxDrawdown(),
		Positions:       e.ledger.Positions(),
		RecentSnapshots: snaps,
		RecentAlerts:    alerts,
		RecentTrades:    e.store.RecentTrades(50),
		Limits:          e.cfg.Limits,
	}
}

// internal

func (e *Engine) recordAlertLocked(a Alert) {
	e.alertLog = append(e.alertLog, a)
	if len(e.alertLog) > e.cfg.AlertHistory {
		e.alertLog = e.alertLog[len(e.alertLog)-e.cfg.AlertHistory:]
	}
	observ.IncCounter("alerts_total", map[string]string{"kind": string(a.Kind)})
	observ.Log("risk_alert", map[string]any{
		"alert_id": a.ID,
		"kind":     string(a.Kind),
		"severity": a.Severity,
		"symbol":   a.Symbol,
		"message":  a.Message,
	})
}

func (e *Engine) takePendingLocked() *Alert {
	a := e.pendingEmergency
	e.pendingEmergency = nil
	return a
}

func (e *Engine) monitorLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(time.Duration(e.cfg.MonitorIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.monitorTick()
		}
	}
}

// monitorTick runs the portfolio-level checks that do not depend on a fresh
// market tick: gauges, and the daily-loss emergency condition.
func (e *Engine) monitorTick() {
	now := e.clock()

	e.mu.Lock()
	daily := e.ledger.DailyPnl()
	value := e.ledger.PortfolioValue()
	drawdown := e.ledger.MaxDrawdown()
	if daily < -e.cfg.Limits.MaxDailyLoss {
		e.controller.Trip("", fmt.Sprintf("daily PnL %.2f breached daily loss limit %.2f", daily, e.cfg.Limits.MaxDailyLoss), now)
	}
	emergency := e.takePendingLocked()
	state := e.stateLocked()
	e.mu.Unlock()

	observ.SetGauge("portfolio_value", value, nil)
	observ.SetGauge("daily_pnl", daily, nil)
	observ.SetGauge("max_drawdown", drawdown, nil)
	observ.SetGauge("engine_emergency", boolToFloat(state == StateEmergency), nil)

	if emergency != nil {
		e.bus.Publish(*emergency)
	}
}

func (e *Engine) cleanupLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(time.Duration(e.cfg.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cleanupTick()
		}
	}
}

func (e *Engine) cleanupTick() {
	cutoff := e.clock().Add(-time.Duration(e.cfg.TradeMaxAgeSeconds) * time.Second)
	e.mu.Lock()
	dropped := e.store.DropTradesBefore(cutoff)
	e.mu.Unlock()
	if dropped > 0 {
		observ.Log("trade_history_cleaned", map[string]any{"dropped": dropped})
		observ.IncCounter("trade_events_dropped_total", nil)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
