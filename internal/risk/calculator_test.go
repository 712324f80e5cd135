package risk

import (
	"math"
	"testing"
	"time"
)

func TestFlatSeriesHasZeroVolatility(t *testing.T) {
	store := NewRollingStore(600, 10)
	calc := NewCalculator(store)
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	var now time.Time
	for i := 0; i < 35; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		store.Append("X", 100, 1, now)
	}

	snap := calc.Compute("X", 100, PortfolioView{PortfolioValue: 1000000}, now)
	if snap.Volatility != 0 {
		t.Fatalf("flat series must have zero volatility, got %v", snap.Volatility)
	}
	if snap.Var95 != 0 {
		t.Fatalf("zero volatility must mean zero VaR, got %v", snap.Var95)
	}
	if snap.RiskScore != 0 {
		t.Fatalf("flat series must score zero risk, got %v", snap.RiskScore)
	}
	if snap.PriceChange1m != 0 || snap.PriceChange5m != 0 {
		t.Fatalf("flat series must show zero price change, got %v / %v", snap.PriceChange1m, snap.PriceChange5m)
	}
}

func TestPriceChangeAgainstReference(t *testing.T) {
	store := NewRollingStore(600, 10)
	calc := NewCalculator(store)
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	store.Append("X", 100, 1, base)
	now := base.Add(30 * time.Second)
	store.Append("X", 90, 1, now)

	snap := calc.Compute("X", 90, PortfolioView{PortfolioValue: 1000000}, now)
	if math.Abs(snap.PriceChange1m-(-0.10)) > 1e-9 {
		t.Fatalf("expected -10%% 1m change, got %v", snap.PriceChange1m)
	}
}

func TestVar95ScalesWithPosition(t *testing.T) {
	store := NewRollingStore(600, 10)
	calc := NewCalculator(store)
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	// Alternate up/down so the return series has non-zero dispersion.
	price := 100.0
	var now time.Time
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			price *= 1.001
		} else {
			price *= 0.999
		}
		now = base.Add(time.Duration(i) * time.Second)
		store.Append("X", price, 1, now)
	}

	snap := calc.Compute("X", price, PortfolioView{PortfolioValue: 1000000, PositionSize: -5}, now)
	if snap.Volatility <= 0 {
		t.Fatalf("expected positive volatility, got %v", snap.Volatility)
	}
	want := snap.PositionValue * snap.Volatility * var95Z
	if math.Abs(snap.Var95-want) > 1e-9 {
		t.Fatalf("VaR95 %v inconsistent with position value %v and vol %v", snap.Var95, snap.PositionValue, snap.Volatility)
	}
	// Position value uses the absolute size; shorts carry risk too.
	if snap.PositionValue <= 0 {
		t.Fatalf("short position must have positive notional, got %v", snap.PositionValue)
	}
}

func TestRiskScoreClamped(t *testing.T) {
	snap := Snapshot{
		PriceChange1m:  0.50,
		PriceChange5m:  0.80,
		Volatility:     2.0,
		Var95:          500000,
		PortfolioValue: 1000000,
	}
	if got := riskScore(snap); got != riskScoreMax {
		t.Fatalf("expected clamp at %v, got %v", riskScoreMax, got)
	}
	if got := riskScore(Snapshot{}); got != 0 {
		t.Fatalf("empty snapshot should score 0, got %v", got)
	}
}

func TestStddev(t *testing.T) {
	if got := stddev([]float64{1}); got != 0 {
		t.Fatalf("single value has no dispersion, got %v", got)
	}
	got := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.13809) > 1e-4 {
		t.Fatalf("unexpected sample stddev %v", got)
	}
}
