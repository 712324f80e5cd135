package risk

import (
	"strings"
	"testing"
	"time"
)

func TestGateCheckOrder(t *testing.T) {
	limits := DefaultLimits() // pos value 100k, ratio 0.20, daily 5k, total 15k, 10/min, 1s interval
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	base := AdmissionInput{
		Symbol:         "X",
		OrderSize:      1,
		OrderPrice:     100,
		Now:            now,
		PortfolioValue: 1000000,
	}

	cases := []struct {
		name       string
		mutate     func(*AdmissionInput)
		wantOK     bool
		wantReason string
	}{
		{
			name:   "clean input admitted",
			mutate: func(in *AdmissionInput) {},
			wantOK: true,
		},
		{
			name: "non-positive price rejected before limit math",
			mutate: func(in *AdmissionInput) {
				in.OrderPrice = 0
				in.OrderSize = 1e9 // would dodge the notional limit at price 0
			},
			wantReason: "invalid order price",
		},
		{
			name: "negative price rejected",
			mutate: func(in *AdmissionInput) {
				in.OrderPrice = -100
			},
			wantReason: "invalid order price",
		},
		{
			name: "zero size rejected",
			mutate: func(in *AdmissionInput) {
				in.OrderSize = 0
			},
			wantReason: "invalid order size",
		},
		{
			name: "emergency denies everything first",
			mutate: func(in *AdmissionInput) {
				in.Emergency = true
				in.EmergencyReason = "risk score 90.0 above 80 for X"
				in.DailyPnl = -99999 // later checks must not be reached
			},
			wantReason: "emergency stop active: risk score 90.0 above 80 for X",
		},
		{
			name: "order interval too tight",
			mutate: func(in *AdmissionInput) {
				in.LastTrade = now.Add(-300 * time.Millisecond)
			},
			wantReason: "order interval",
		},
		{
			name: "trade rate exhausted",
			mutate: func(in *AdmissionInput) {
				in.LastTrade = now.Add(-5 * time.Second)
				in.TradesLastMinute = 10
			},
			wantReason: "trade rate limit",
		},
		{
			name: "resulting position value too large",
			mutate: func(in *AdmissionInput) {
				in.OrderSize = 1100 // 1100 * 100 = 110000 > 100000
			},
			wantReason: "position value limit",
		},
		{
			name: "existing position counts toward the value limit",
			mutate: func(in *AdmissionInput) {
				in.PositionSize = 950
				in.OrderSize = 100
			},
			wantReason: "position value limit",
		},
		{
			name: "position ratio over portfolio",
			mutate: func(in *AdmissionInput) {
				in.OrderSize = 900 // 90000 under value limit, but 30% of 300k
				in.PortfolioValue = 300000
			},
			wantReason: "position ratio limit",
		},
		{
			name: "daily loss limit reached",
			mutate: func(in *AdmissionInput) {
				in.DailyPnl = -5100
			},
			wantReason: "daily loss limit",
		},
		{
			name: "total loss limit reached",
			mutate: func(in *AdmissionInput) {
				in.TotalPnl = -15100
			},
			wantReason: "total loss limit",
		},
		{
			name: "closing a short is still bounded by notional",
			mutate: func(in *AdmissionInput) {
				in.PositionSize = -500
				in.OrderSize = 400 // |{-500+400}| * 100 = 10000, fine
			},
			wantOK: true,
		},
	}

	gate := NewGate(limits)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			ok, reason := gate.Check(in)
			if ok != tc.wantOK {
				t.Fatalf("ok=%v reason=%q, want ok=%v", ok, reason, tc.wantOK)
			}
			if tc.wantOK && reason != "ok" {
				t.Fatalf("admitted order must report ok, got %q", reason)
			}
			if !tc.wantOK && !strings.Contains(reason, tc.wantReason) {
				t.Fatalf("reason %q does not mention %q", reason, tc.wantReason)
			}
		})
	}
}

func TestGateIntervalDisabled(t *testing.T) {
	limits := DefaultLimits()
	limits.MinOrderIntervalSeconds = 0
	gate := NewGate(limits)
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	ok, reason := gate.Check(AdmissionInput{
		Symbol: "X", OrderSize: 1, OrderPrice: 100, Now: now,
		LastTrade:      now.Add(-time.Millisecond),
		PortfolioValue: 1000000,
	})
	if !ok {
		t.Fatalf("zero interval must disable the check, got %q", reason)
	}
}
