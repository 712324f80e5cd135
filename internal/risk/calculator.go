package risk

import (
	"math"
	"time"
)

// Snapshot is the per-symbol risk picture produced for every market-data
// update. Immutable after creation; appended to a bounded history.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Symbol         string    `json:"symbol"`
	CurrentPrice   float64   `json:"current_price"`
	PortfolioValue float64   `json:"portfolio_value"`
	PositionSize   float64   `json:"position_size"`
	PositionValue  float64   `json:"position_value"`
	DailyPnl       float64   `json:"daily_pnl"`
	TotalPnl       float64   `json:"total_pnl"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	Volatility     float64   `json:"volatility"`
	Var95          float64   `json:"var_95"`
	RiskScore      float64   `json:"risk_score"` // 0-100
	PriceChange1m  float64   `json:"price_change_1m"`
	PriceChange5m  float64   `json:"price_change_5m"`
}

// PortfolioView is the slice of ledger state the calculator needs. The engine
// assembles it under its lock so the snapshot is internally consistent.
type PortfolioView struct {
	PortfolioValue float64
	PositionSize   float64
	DailyPnl       float64
	TotalPnl       float64
	MaxDrawdown    float64
}

const (
	volatilityWindow = 30 // samples of simple returns

	// One-tailed 95% quantile of the standard normal distribution.
	var95Z = 1.645

	riskScoreMax = 100.0
)

// annualization assumes minute-bar-equivalent sample cadence:
// 252 trading days of 390 one-minute bars.
var annualization = math.Sqrt(252 * 390)

// Calculator derives a Snapshot from the rolling window plus the current
// sample. Pure with respect to the store it reads: no hidden state.
type Calculator struct {
	store *RollingStore
}

func NewCalculator(store *RollingStore) *Calculator {
	return &Calculator{store: store}
}

// Compute builds the snapshot for symbol at the given price. The caller has
// already appended the sample to the store.
func (c *Calculator) Compute(symbol string, price float64, view PortfolioView, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:      now,
		Symbol:         symbol,
		CurrentPrice:   price,
		PortfolioValue: view.PortfolioValue,
		PositionSize:   view.PositionSize,
		PositionValue:  math.Abs(view.PositionSize) * price,
		DailyPnl:       view.DailyPnl,
		TotalPnl:       view.TotalPnl,
		MaxDrawdown:    view.MaxDrawdown,
	}

	snap.PriceChange1m = c.priceChange(symbol, price, time.Minute, now)
	snap.PriceChange5m = c.priceChange(symbol, price, 5*time.Minute, now)
	snap.Volatility = c.volatility(symbol)

	if snap.Volatility > 0 {
		snap.Var95 = snap.PositionValue * snap.Volatility * var95Z
	}

	snap.RiskScore = riskScore(snap)
	return snap
}

// priceChange is the fractional move against the window reference price.
// Insufficient history yields 0: not enough information, not an alert.
func (c *Calculator) priceChange(symbol string, price float64, lookback time.Duration, now time.Time) float64 {
	ref, ok := c.store.PriceAgo(symbol, lookback, now)
	if !ok || ref <= 0 {
		return 0
	}
	return (price - ref) / ref
}

// volatility is the annualized standard deviation of the last
// volatilityWindow samples' simple returns; 0 with fewer samples.
func (c *Calculator) volatility(symbol string) float64 {
	returns := c.store.Returns(symbol, volatilityWindow)
	if len(returns) < 2 {
		return 0
	}
	return stddev(returns) * annualization
}

// riskScore folds the snapshot into a 0-100 composite. Weights follow the
// relative immediacy of each factor: the 1m move dominates, then the 5m move,
// volatility and the VaR share of the portfolio.
func riskScore(snap Snapshot) float64 {
	score := math.Abs(snap.PriceChange1m)*200 +
		math.Abs(snap.PriceChange5m)*100 +
		snap.Volatility*100
	if snap.PortfolioValue > 0 {
		score += (snap.Var95 / snap.PortfolioValue) * 100
	}
	return clamp(score, 0, riskScoreMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1) // sample variance
	return math.Sqrt(variance)
}
