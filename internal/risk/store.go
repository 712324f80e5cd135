package risk

import "time"

// PriceSample is one observed market-data tick.
type PriceSample struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// TradeEvent records an executed trade. The same buffer serves accounting
// (status queries) and the rolling one-minute rate window.
type TradeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Size      float64   `json:"size"`
	Price     float64   `json:"price"`
}

// priceRing is a fixed-capacity ring buffer of price samples. No resizing:
// pushing onto a full ring evicts the oldest sample.
type priceRing struct {
	buf  []PriceSample
	head int // next write index
	n    int
}

func newPriceRing(capacity int) *priceRing {
	return &priceRing{buf: make([]PriceSample, capacity)}
}

func (r *priceRing) push(s PriceSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *priceRing) len() int { return r.n }

// at returns the i-th sample with 0 = oldest.
func (r *priceRing) at(i int) PriceSample {
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

// RollingStore holds the bounded per-symbol price windows and the bounded
// trade-event buffer. It is not self-locking: the engine owns it and every
// access happens under the engine lock.
type RollingStore struct {
	priceCap int
	tradeCap int

	prices map[string]*priceRing // allocated on first sight of a symbol
	trades []TradeEvent          // time-ordered, bounded
}

// NewRollingStore sizes the windows. priceCap must cover at least the
// five-minute lookback at the expected tick rate; tradeCap at least one
// minute of fills.
func NewRollingStore(priceCap, tradeCap int) *RollingStore {
	if priceCap <= 0 {
		priceCap = 600
	}
	if tradeCap <= 0 {
		tradeCap = 300
	}
	return &RollingStore{
		priceCap: priceCap,
		tradeCap: tradeCap,
		prices:   make(map[string]*priceRing),
	}
}

// Append records a price sample for symbol. O(1); oldest sample evicted when
// the window is full.
func (s *RollingStore) Append(symbol string, price, volume float64, now time.Time) {
	r, ok := s.prices[symbol]
	if !ok {
		r = newPriceRing(s.priceCap)
		s.prices[symbol] = r
	}
	r.push(PriceSample{Timestamp: now, Price: price, Volume: volume})
}

// SampleCount returns the number of retained samples for symbol.
func (s *RollingStore) SampleCount(symbol string) int {
	r, ok := s.prices[symbol]
	if !ok {
		return 0
	}
	return r.len()
}

// LatestPrice returns the most recent sample for symbol.
func (s *RollingStore) LatestPrice(symbol string) (float64, bool) {
	r, ok := s.prices[symbol]
	if !ok || r.len() == 0 {
		return 0, false
	}
	return r.at(r.len() - 1).Price, true
}

// PriceAgo returns the reference price for a lookback window: the newest
// sample at or before now-lookback. When the series is younger than the
// window the oldest sample stands in, so short-lived series still measure
// their full observed move. ok is false with fewer than two samples; callers
// treat that as "no information" (no alert, no denial), never as an error.
func (s *RollingStore) PriceAgo(symbol string, lookback time.Duration, now time.Time) (float64, bool) {
	r, ok := s.prices[symbol]
	if !ok || r.len() < 2 {
		return 0, false
	}
	cutoff := now.Add(-lookback)
	price := r.at(0).Price
	for i := 0; i < r.len(); i++ {
		sample := r.at(i)
		if sample.Timestamp.After(cutoff) {
			break
		}
		price = sample.Price
	}
	return price, true
}

// Returns computes the simple returns of the last n samples of symbol
// (n-1 values). Nil when fewer than n samples are retained.
func (s *RollingStore) Returns(symbol string, n int) []float64 {
	r, ok := s.prices[symbol]
	if !ok || r.len() < n || n < 2 {
		return nil
	}
	out := make([]float64, 0, n-1)
	start := r.len() - n
	for i := start + 1; i < r.len(); i++ {
		prev := r.at(i - 1).Price
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (r.at(i).Price-prev)/prev)
	}
	return out
}

// RecordTrade appends a trade event, evicting the oldest when full.
func (s *RollingStore) RecordTrade(ev TradeEvent) {
	s.trades = append(s.trades, ev)
	if len(s.trades) > s.tradeCap {
		s.trades = s.trades[len(s.trades)-s.tradeCap:]
	}
}

// LastTradeTime returns the timestamp of the most recent trade.
func (s *RollingStore) LastTradeTime() (time.Time, bool) {
	if len(s.trades) == 0 {
		return time.Time{}, false
	}
	return s.trades[len(s.trades)-1].Timestamp, true
}

// TradesInWindow counts trades newer than now-window.
func (s *RollingStore) TradesInWindow(window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	count := 0
	for i := len(s.trades) - 1; i >= 0; i-- {
		if !s.trades[i].Timestamp.After(cutoff) {
			break
		}
		count++
	}
	return count
}

// RecentTrades returns a copy of up to max most recent trade events.
func (s *RollingStore) RecentTrades(max int) []TradeEvent {
	if max <= 0 || max > len(s.trades) {
		max = len(s.trades)
	}
	out := make([]TradeEvent, max)
	copy(out, s.trades[len(s.trades)-max:])
	return out
}

// DropTradesBefore discards trade events older than cutoff. Called from the
// periodic cleanup tick.
func (s *RollingStore) DropTradesBefore(cutoff time.Time) int {
	idx := 0
	for idx < len(s.trades) && s.trades[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return 0
	}
	s.trades = append([]TradeEvent(nil), s.trades[idx:]...)
	return idx
}
