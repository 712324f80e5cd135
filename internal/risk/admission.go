package risk

import (
	"fmt"
	"math"
	"time"
)

// AdmissionInput is everything the gate needs to decide, assembled by the
// engine under its lock so the check sees one consistent state.
type AdmissionInput struct {
	Symbol     string
	OrderSize  float64
	OrderPrice float64
	Now        time.Time

	Emergency       bool
	EmergencyReason string

	LastTrade        time.Time // zero when no trades yet
	TradesLastMinute int

	PositionSize   float64
	PortfolioValue float64
	DailyPnl       float64
	TotalPnl       float64
}

// Gate runs the ordered pre-trade checks. Pure function of its input: no
// I/O, no clock reads, no mutation, which is what keeps the admission path
// inside its latency budget.
type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate {
	return &Gate{limits: limits}
}

// Check evaluates the checks in order and short-circuits on the first
// failure. A denial is a result, not an error.
//
// Nonsense orders are rejected up front: at a non-positive price the
// notional and ratio limits degenerate to zero and could never fire.
func (g *Gate) Check(in AdmissionInput) (bool, string) {
	l := g.limits

	if in.OrderPrice <= 0 {
		return false, fmt.Sprintf("invalid order price %.2f", in.OrderPrice)
	}
	if in.OrderSize == 0 {
		return false, "invalid order size 0"
	}

	if in.Emergency {
		reason := "emergency stop active"
		if in.EmergencyReason != "" {
			reason = fmt.Sprintf("emergency stop active: %s", in.EmergencyReason)
		}
		return false, reason
	}

	if !in.LastTrade.IsZero() && l.MinOrderIntervalSeconds > 0 {
		elapsed := in.Now.Sub(in.LastTrade).Seconds()
		if elapsed < l.MinOrderIntervalSeconds {
			return false, fmt.Sprintf("order interval %.2fs below minimum %.2fs", elapsed, l.MinOrderIntervalSeconds)
		}
	}

	if in.TradesLastMinute >= l.MaxTradesPerMinute {
		return false, fmt.Sprintf("trade rate limit: %d trades in last 60s (max %d)", in.TradesLastMinute, l.MaxTradesPerMinute)
	}

	resulting := math.Abs(in.PositionSize+in.OrderSize) * in.OrderPrice
	if resulting > l.MaxPositionValue {
		return false, fmt.Sprintf("position value limit: resulting %.2f exceeds max position value %.2f", resulting, l.MaxPositionValue)
	}

	if in.PortfolioValue > 0 {
		if ratio := resulting / in.PortfolioValue; ratio > l.MaxPositionRatio {
			return false, fmt.Sprintf("position ratio limit: %.4f exceeds max %.4f", ratio, l.MaxPositionRatio)
		}
	}

	if in.DailyPnl < -l.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit: daily PnL %.2f beyond -%.2f", in.DailyPnl, l.MaxDailyLoss)
	}
	if in.TotalPnl < -l.MaxTotalLoss {
		return false, fmt.Sprintf("total loss limit: total PnL %.2f beyond -%.2f", in.TotalPnl, l.MaxTotalLoss)
	}

	return true, "ok"
}
