package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/Rajchodisetti/riskguard/pkg/id"
)

// AlertKind ranks alerts on the severity ladder.
type AlertKind string

const (
	KindWarning   AlertKind = "WARNING"
	KindCritical  AlertKind = "CRITICAL"
	KindEmergency AlertKind = "EMERGENCY"
)

// Alert is an immutable record of a threshold breach. Appended to the bounded
// alert log and published on the notification bus.
type Alert struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Kind              AlertKind `json:"kind"`
	Message           string    `json:"message"`
	Symbol            string    `json:"symbol"`
	CurrentValue      float64   `json:"current_value"`
	LimitValue        float64   `json:"limit_value"`
	Severity          int       `json:"severity"` // 1-10
	RecommendedAction string    `json:"recommended_action"`
}

// Evaluator compares snapshots against the configured limits. Each rule is
// independent: one update can emit several alerts.
type Evaluator struct {
	limits Limits
}

func NewEvaluator(limits Limits) *Evaluator {
	return &Evaluator{limits: limits}
}

// Evaluate returns the alerts a snapshot warrants plus a non-empty
// emergencyReason when conditions call for tripping the breaker. The trip
// decision is returned, not executed: only the engine touches the controller.
func (e *Evaluator) Evaluate(snap Snapshot) (alerts []Alert, emergencyReason string) {
	l := e.limits
	now := snap.Timestamp

	if change := math.Abs(snap.PriceChange1m); change > l.MaxPriceChange1m {
		kind, severity := KindWarning, 5
		action := "review open orders"
		if change >= 1.5*l.MaxPriceChange1m {
			kind, severity = KindCritical, 8
			action = "reduce exposure"
		}
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              kind,
			Message:           fmt.Sprintf("1m price change %.2f%% exceeds limit %.2f%%", change*100, l.MaxPriceChange1m*100),
			Symbol:            snap.Symbol,
			CurrentValue:      change,
			LimitValue:        l.MaxPriceChange1m,
			Severity:          severity,
			RecommendedAction: action,
		})
	}

	if change := math.Abs(snap.PriceChange5m); change > l.MaxPriceChange5m {
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindWarning,
			Message:           fmt.Sprintf("5m price change %.2f%% exceeds limit %.2f%%", change*100, l.MaxPriceChange5m*100),
			Symbol:            snap.Symbol,
			CurrentValue:      change,
			LimitValue:        l.MaxPriceChange5m,
			Severity:          5,
			RecommendedAction: "review open orders",
		})
	}

	if snap.Volatility > l.MaxVolatility {
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindWarning,
			Message:           fmt.Sprintf("volatility %.2f exceeds limit %.2f", snap.Volatility, l.MaxVolatility),
			Symbol:            snap.Symbol,
			CurrentValue:      snap.Volatility,
			LimitValue:        l.MaxVolatility,
			Severity:          6,
			RecommendedAction: "tighten position sizing",
		})
	}

	if snap.Var95 > l.MaxVar95 {
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindCritical,
			Message:           fmt.Sprintf("VaR95 %.2f exceeds limit %.2f", snap.Var95, l.MaxVar95),
			Symbol:            snap.Symbol,
			CurrentValue:      snap.Var95,
			LimitValue:        l.MaxVar95,
			Severity:          8,
			RecommendedAction: "reduce position",
		})
	}

	if snap.DailyPnl < -0.8*l.MaxDailyLoss {
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindCritical,
			Message:           fmt.Sprintf("daily PnL %.2f approaching daily loss limit %.2f", snap.DailyPnl, l.MaxDailyLoss),
			Symbol:            snap.Symbol,
			CurrentValue:      snap.DailyPnl,
			LimitValue:        -l.MaxDailyLoss,
			Severity:          9,
			RecommendedAction: "halt new entries",
		})
	}

	if snap.MaxDrawdown > l.MaxDrawdown {
		alerts = append(alerts, Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindCritical,
			Message:           fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%%", snap.MaxDrawdown*100, l.MaxDrawdown*100),
			Symbol:            snap.Symbol,
			CurrentValue:      snap.MaxDrawdown,
			LimitValue:        l.MaxDrawdown,
			Severity:          9,
			RecommendedAction: "halt new entries",
		})
	}

	// Emergency triggers are evaluated independently of the alert rules above.
	switch {
	case snap.RiskScore > 80:
		emergencyReason = fmt.Sprintf("risk score %.1f above 80 for %s", snap.RiskScore, snap.Symbol)
	case math.Abs(snap.PriceChange1m) >= 2*l.MaxPriceChange1m:
		emergencyReason = fmt.Sprintf("1m price change %.2f%% at or beyond 2x limit for %s", snap.PriceChange1m*100, snap.Symbol)
	case snap.DailyPnl < -l.MaxDailyLoss:
		emergencyReason = fmt.Sprintf("daily PnL %.2f breached daily loss limit %.2f", snap.DailyPnl, l.MaxDailyLoss)
	}

	return alerts, emergencyReason
}
