// Package bridge adapts the risk engine for a host trading process: async
// style start/stop, a pre-trade delegate with an independent soft block, and
// status projections for external display.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/Rajchodisetti/riskguard/internal/observ"
	"github.com/Rajchodisetti/riskguard/internal/risk"
)

// softBlockSeverity is the alert severity at or above which the bridge
// engages its own trade block. Distinct from the emergency breaker: this one
// is manually clearable via UnblockTrading.
const softBlockSeverity = 8

// IntegrationStatus is the bridge's external status projection.
type IntegrationStatus struct {
	Started      bool            `json:"started"`
	TradeBlocked bool            `json:"trade_blocked"`
	BlockReason  string          `json:"block_reason,omitempty"`
	BlockedAt    time.Time       `json:"blocked_at,omitempty"`
	Engine       risk.RiskStatus `json:"engine"`
}

// Bridge wraps an Engine for a host system. The soft tradeBlocked flag is
// driven by received alerts and lives entirely in the bridge; clearing it
// never touches the EmergencyController.
type Bridge struct {
	engine *risk.Engine

	mu           sync.Mutex
	started      bool
	tradeBlocked bool
	blockReason  string
	blockedAt    time.Time
	subHandle    int
}

func New(engine *risk.Engine) *Bridge {
	return &Bridge{engine: engine}
}

// StartIntegration starts the engine and subscribes the bridge's alert
// handler. Idempotent.
func (b *Bridge) StartIntegration() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	b.subHandle = b.engine.AddAlertCallback(b.onAlert)
	b.started = true
	observ.Log("integration_started", nil)
	return nil
}

// StopIntegration stops the engine and detaches the alert handler.
// Idempotent. The soft block and any emergency state survive a stop.
//
// The engine stop happens outside b.mu: Stop waits for the monitor loop,
// and an in-flight emergency fan-out may be parked in onAlert needing the
// same lock.
func (b *Bridge) StopIntegration() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	handle := b.subHandle
	b.started = false
	b.mu.Unlock()

	b.engine.RemoveCallback(handle)
	if err := b.engine.Stop(); err != nil {
		return fmt.Errorf("stop engine: %w", err)
	}
	observ.Log("integration_stopped", nil)
	return nil
}

// onAlert engages the soft block on any CRITICAL-or-worse alert with
// severity at or above the block threshold.
func (b *Bridge) onAlert(a risk.Alert) {
	if a.Severity < softBlockSeverity {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tradeBlocked {
		return
	}
	b.tradeBlocked = true
	b.blockReason = fmt.Sprintf("%s alert severity %d: %s", a.Kind, a.Severity, a.Message)
	b.blockedAt = a.Timestamp
	observ.IncCounter("bridge_trade_blocks_total", map[string]string{"kind": string(a.Kind)})
	observ.Log("trading_blocked", map[string]any{"alert_id": a.ID, "reason": b.blockReason})
}

// PreTradeCheck delegates to the engine after applying the soft block.
func (b *Bridge) PreTradeCheck(symbol string, orderSize, orderPrice float64) (bool, string) {
	b.mu.Lock()
	blocked, reason := b.tradeBlocked, b.blockReason
	b.mu.Unlock()
	if blocked {
		return false, fmt.Sprintf("trading blocked: %s", reason)
	}
	return b.engine.CheckPreTradeRisk(symbol, orderSize, orderPrice)
}

// UpdateMarketData forwards a tick to the engine.
func (b *Bridge) UpdateMarketData(symbol string, price, volume float64) {
	b.engine.UpdateMarketData(symbol, price, volume)
}

// UpdatePosition forwards a position snapshot to the engine.
func (b *Bridge) UpdatePosition(symbol string, positionSize, tradePrice float64) {
	b.engine.UpdatePosition(symbol, positionSize, tradePrice)
}

// UnblockTrading clears only the soft block. The emergency breaker, if
// tripped, still denies every trade.
func (b *Bridge) UnblockTrading(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tradeBlocked {
		return
	}
	b.tradeBlocked = false
	observ.Log("trading_unblocked", map[string]any{"reason": reason, "was_blocked_for": b.blockReason})
	b.blockReason = ""
	b.blockedAt = time.Time{}
}

// ResetEmergency is the external authority that clears the emergency
// breaker. It does not touch the soft block.
func (b *Bridge) ResetEmergency(operator, reason string) error {
	return b.engine.ResetEmergency(operator, reason)
}

// EmergencyShutdown trips the breaker on behalf of the host.
func (b *Bridge) EmergencyShutdown(reason string) {
	b.engine.EmergencyShutdown(reason)
}

// GetIntegrationStatus returns the bridge view plus the engine status.
func (b *Bridge) GetIntegrationStatus() IntegrationStatus {
	b.mu.Lock()
	started, blocked, reason, at := b.started, b.tradeBlocked, b.blockReason, b.blockedAt
	b.mu.Unlock()
	return IntegrationStatus{
		Started:      started,
		TradeBlocked: blocked,
		BlockReason:  reason,
		BlockedAt:    at,
		Engine:       b.engine.Status(),
	}
}
