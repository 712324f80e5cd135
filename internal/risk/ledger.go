package risk

import (
	"math"
	"time"

	"github.com/Rajchodisetti/riskguard/internal/observ"
)

// Position is the engine's view of one instrument's holding. Sizes are
// signed quantities; short positions are negative.
type Position struct {
	Symbol        string  `json:"symbol"`
	Size          float64 `json:"size"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	LastPrice     float64 `json:"last_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// Ledger tracks positions, realized and unrealized P&L, portfolio value, the
// running peak and drawdown. Position updates are snapshots (last-write-wins
// sizes), so the ledger derives each trade from the size delta.
//
// P&L formula: a delta that reduces the open position realizes
// closedQty * (price - avgEntry) with the sign of the old side; a delta that
// extends it re-weights the average entry price; a flip realizes the full old
// position and opens the remainder at the trade price. Unrealized P&L marks
// open positions against the latest seen price.
//
// Not self-locking: the engine owns it.
type Ledger struct {
	capitalBase float64
	positions   map[string]*Position

	realizedTotal float64
	realizedToday float64
	tradingDay    string // YYYY-MM-DD (UTC)

	peakValue float64
	drawdown  float64 // fraction of peak, running maximum
}

func NewLedger(capitalBase float64) *Ledger {
	return &Ledger{
		capitalBase: capitalBase,
		positions:   make(map[string]*Position),
		peakValue:   capitalBase,
	}
}

// Update applies a position snapshot for symbol: the stored size becomes
// newSize (not oldSize+newSize) and the implied trade is booked at price.
func (l *Ledger) Update(symbol string, newSize, price float64, now time.Time) {
	l.rollTradingDay(now)

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		l.positions[symbol] = pos
	}

	delta := newSize - pos.Size
	switch {
	case delta == 0:
		// Size unchanged; treat as a mark.
	case pos.Size == 0 || sameSign(pos.Size, delta):
		// Opening or extending: re-weight average entry.
		totalCost := pos.AvgEntryPrice*pos.Size + price*delta
		pos.AvgEntryPrice = totalCost / newSize
	case math.Abs(delta) <= math.Abs(pos.Size):
		// Reducing or closing: realize on the closed quantity.
		l.realize(math.Abs(delta) * (price - pos.AvgEntryPrice) * sign(pos.Size))
		if newSize == 0 {
			pos.AvgEntryPrice = 0
		}
	default:
		// Flip: realize the whole old position, open the rest fresh.
		l.realize(math.Abs(pos.Size) * (price - pos.AvgEntryPrice) * sign(pos.Size))
		pos.AvgEntryPrice = price
	}

	pos.Size = newSize
	pos.LastPrice = price
	pos.UnrealizedPnl = pos.Size * (pos.LastPrice - pos.AvgEntryPrice)

	l.refreshValue()
}

// Mark updates the mark price for symbol without booking a trade.
func (l *Ledger) Mark(symbol string, price float64) {
	pos, ok := l.positions[symbol]
	if !ok || pos.Size == 0 {
		return
	}
	pos.LastPrice = price
	pos.UnrealizedPnl = pos.Size * (price - pos.AvgEntryPrice)
	l.refreshValue()
}

func (l *Ledger) realize(pnl float64) {
	l.realizedTotal += pnl
	l.realizedToday += pnl
}

func (l *Ledger) rollTradingDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if l.tradingDay == "" {
		l.tradingDay = day
		return
	}
	if day != l.tradingDay {
		observ.Log("ledger_day_rolled", map[string]any{
			"previous_day":  l.tradingDay,
			"realized_prev": l.realizedToday,
		})
		l.tradingDay = day
		l.realizedToday = 0
	}
}

func (l *Ledger) refreshValue() {
	value := l.PortfolioValue()
	if value > l.peakValue {
		l.peakValue = value
	}
	if l.peakValue > 0 {
		dd := (l.peakValue - value) / l.peakValue
		if dd > l.drawdown {
			l.drawdown = dd
		}
	}
}

func (l *Ledger) unrealizedTotal() float64 {
	total := 0.0
	for _, pos := range l.positions {
		total += pos.UnrealizedPnl
	}
	return total
}

// PositionSize returns the signed size for symbol, 0 when never traded.
func (l *Ledger) PositionSize(symbol string) float64 {
	if pos, ok := l.positions[symbol]; ok {
		return pos.Size
	}
	return 0
}

// PortfolioValue is capital base plus total P&L.
func (l *Ledger) PortfolioValue() float64 {
	return l.capitalBase + l.realizedTotal + l.unrealizedTotal()
}

// DailyPnl is today's realized P&L plus current unrealized P&L.
func (l *Ledger) DailyPnl() float64 {
	return l.realizedToday + l.unrealizedTotal()
}

// TotalPnl is cumulative realized plus current unrealized P&L.
func (l *Ledger) TotalPnl() float64 {
	return l.realizedTotal + l.unrealizedTotal()
}

// PeakValue is the running portfolio high-water mark.
func (l *Ledger) PeakValue() float64 { return l.peakValue }

// MaxDrawdown is the running maximum peak-to-trough decline as a fraction.
func (l *Ledger) MaxDrawdown() float64 { return l.drawdown }

// Positions returns copies of all positions keyed by symbol.
func (l *Ledger) Positions() map[string]Position {
	out := make(map[string]Position, len(l.positions))
	for symbol, pos := range l.positions {
		out[symbol] = *pos
	}
	return out
}

// View assembles the portfolio slice the calculator consumes.
func (l *Ledger) View(symbol string) PortfolioView {
	return PortfolioView{
		PortfolioValue: l.PortfolioValue(),
		PositionSize:   l.PositionSize(symbol),
		DailyPnl:       l.DailyPnl(),
		TotalPnl:       l.TotalPnl(),
		MaxDrawdown:    l.drawdown,
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
