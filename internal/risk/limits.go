package risk

import "fmt"

// Limits is the immutable set of numeric risk thresholds the engine enforces.
// Construct once, validate, and hand to the engine; nothing mutates it after.
type Limits struct {
	MaxPositionValue float64 `yaml:"max_position_value" json:"max_position_value"` // absolute notional per symbol
	MaxPositionRatio float64 `yaml:"max_position_ratio" json:"max_position_ratio"` // notional / portfolio value

	MaxDailyLoss float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxTotalLoss float64 `yaml:"max_total_loss" json:"max_total_loss"`
	MaxDrawdown  float64 `yaml:"max_drawdown" json:"max_drawdown"` // fraction of peak, e.g. 0.10

	MaxVolatility float64 `yaml:"max_volatility" json:"max_volatility"` // annualized
	MaxVar95      float64 `yaml:"max_var_95" json:"max_var_95"`

	MaxPriceChange1m float64 `yaml:"max_price_change_1m" json:"max_price_change_1m"`
	MaxPriceChange5m float64 `yaml:"max_price_change_5m" json:"max_price_change_5m"`

	MaxTradesPerMinute      int     `yaml:"max_trades_per_minute" json:"max_trades_per_minute"`
	MinOrderIntervalSeconds float64 `yaml:"min_order_interval_seconds" json:"min_order_interval_seconds"`
}

// DefaultLimits returns a conservative starting point suitable for the demo.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionValue:        100000,
		MaxPositionRatio:        0.20,
		MaxDailyLoss:            5000,
		MaxTotalLoss:            15000,
		MaxDrawdown:             0.10,
		MaxVolatility:           0.80,
		MaxVar95:                10000,
		MaxPriceChange1m:        0.05,
		MaxPriceChange5m:        0.10,
		MaxTradesPerMinute:      10,
		MinOrderIntervalSeconds: 1,
	}
}

// Validate fails fast on limits that can never be satisfied. A zero or
// negative ceiling would deny everything (or nothing) silently, so it is a
// construction error rather than a runtime condition.
func (l Limits) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"max_position_value", l.MaxPositionValue},
		{"max_position_ratio", l.MaxPositionRatio},
		{"max_daily_loss", l.MaxDailyLoss},
		{"max_total_loss", l.MaxTotalLoss},
		{"max_drawdown", l.MaxDrawdown},
		{"max_volatility", l.MaxVolatility},
		{"max_var_95", l.MaxVar95},
		{"max_price_change_1m", l.MaxPriceChange1m},
		{"max_price_change_5m", l.MaxPriceChange5m},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("limits: %s must be positive, got %v", p.name, p.value)
		}
	}
	if l.MaxTradesPerMinute <= 0 {
		return fmt.Errorf("limits: max_trades_per_minute must be positive, got %d", l.MaxTradesPerMinute)
	}
	if l.MinOrderIntervalSeconds < 0 {
		return fmt.Errorf("limits: min_order_interval_seconds must not be negative, got %v", l.MinOrderIntervalSeconds)
	}
	return nil
}
