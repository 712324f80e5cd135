package risk

import (
	"strings"
	"testing"
	"time"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Timestamp:      time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		Symbol:         "X",
		CurrentPrice:   100,
		PortfolioValue: 1000000,
	}
}

func TestEvaluateRules(t *testing.T) {
	limits := DefaultLimits() // 1m 5%, 5m 10%, vol 0.80, var95 10000, daily 5000, drawdown 10%

	cases := []struct {
		name          string
		mutate        func(*Snapshot)
		wantKind      AlertKind
		wantSeverity  int
		wantEmergency bool
	}{
		{
			name:         "1m change just over limit warns",
			mutate:       func(s *Snapshot) { s.PriceChange1m = 0.06 },
			wantKind:     KindWarning,
			wantSeverity: 5,
		},
		{
			name:         "1m change at 1.5x limit escalates to critical",
			mutate:       func(s *Snapshot) { s.PriceChange1m = -0.08 },
			wantKind:     KindCritical,
			wantSeverity: 8,
		},
		{
			name:          "1m change at 2x limit also trips emergency",
			mutate:        func(s *Snapshot) { s.PriceChange1m = -0.10 },
			wantKind:      KindCritical,
			wantSeverity:  8,
			wantEmergency: true,
		},
		{
			name:         "5m change warns",
			mutate:       func(s *Snapshot) { s.PriceChange5m = 0.12 },
			wantKind:     KindWarning,
			wantSeverity: 5,
		},
		{
			name:         "volatility warns at severity 6",
			mutate:       func(s *Snapshot) { s.Volatility = 0.95 },
			wantKind:     KindWarning,
			wantSeverity: 6,
		},
		{
			name:         "var95 breach is critical",
			mutate:       func(s *Snapshot) { s.Var95 = 12000 },
			wantKind:     KindCritical,
			wantSeverity: 8,
		},
		{
			name:         "daily loss approaching limit is critical",
			mutate:       func(s *Snapshot) { s.DailyPnl = -4100 }, // beyond 80% of 5000
			wantKind:     KindCritical,
			wantSeverity: 9,
		},
		{
			name:         "drawdown breach is critical but not emergency",
			mutate:       func(s *Snapshot) { s.MaxDrawdown = 0.12 },
			wantKind:     KindCritical,
			wantSeverity: 9,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eval := NewEvaluator(limits)
			snap := testSnapshot()
			tc.mutate(&snap)

			alerts, reason := eval.Evaluate(snap)
			if len(alerts) != 1 {
				t.Fatalf("expected exactly one alert, got %d: %+v", len(alerts), alerts)
			}
			a := alerts[0]
			if a.Kind != tc.wantKind || a.Severity != tc.wantSeverity {
				t.Fatalf("got %s severity %d, want %s severity %d", a.Kind, a.Severity, tc.wantKind, tc.wantSeverity)
			}
			if a.ID == "" || a.Symbol != "X" || a.RecommendedAction == "" {
				t.Fatalf("alert missing identity fields: %+v", a)
			}
			if (reason != "") != tc.wantEmergency {
				t.Fatalf("emergency reason %q, wantEmergency=%v", reason, tc.wantEmergency)
			}
		})
	}
}

func TestEvaluateEmergencyTriggers(t *testing.T) {
	eval := NewEvaluator(DefaultLimits())

	snap := testSnapshot()
	snap.RiskScore = 85
	if _, reason := eval.Evaluate(snap); !strings.Contains(reason, "risk score") {
		t.Fatalf("expected risk score trigger, got %q", reason)
	}

	snap = testSnapshot()
	snap.DailyPnl = -5001
	_, reason := eval.Evaluate(snap)
	if !strings.Contains(reason, "daily PnL") {
		t.Fatalf("expected daily loss trigger, got %q", reason)
	}

	// Just below every threshold: no alerts, no emergency.
	snap = testSnapshot()
	snap.PriceChange1m = 0.05
	snap.Volatility = 0.80
	snap.DailyPnl = -4000
	alerts, reason := eval.Evaluate(snap)
	if len(alerts) != 0 || reason != "" {
		t.Fatalf("at-limit snapshot must be quiet, got %d alerts, reason %q", len(alerts), reason)
	}
}

func TestEvaluateMultipleRulesFire(t *testing.T) {
	eval := NewEvaluator(DefaultLimits())
	snap := testSnapshot()
	snap.PriceChange1m = 0.06
	snap.Volatility = 0.95
	snap.Var95 = 12000

	alerts, _ := eval.Evaluate(snap)
	if len(alerts) != 3 {
		t.Fatalf("independent rules should all fire, got %d", len(alerts))
	}
}
