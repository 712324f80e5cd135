package risk

import (
	"sync"

	"github.com/Rajchodisetti/riskguard/internal/observ"
)

// AlertCallback receives published alerts. Callbacks must not assume a
// particular goroutine: WARNING/CRITICAL alerts arrive asynchronously,
// EMERGENCY alerts on the publishing goroutine.
type AlertCallback func(Alert)

type subscriber struct {
	fn            AlertCallback
	emergencyOnly bool
}

// Bus is the subscriber registry for alert and emergency events. Explicit
// subscribe/unsubscribe handles, no weak references: lifetime is the
// caller's responsibility.
//
// Delivery never blocks the producer: non-emergency alerts fan out on a
// fresh goroutine. Emergency alerts are delivered synchronously so the
// tripped state and the alert are observed together. A panicking subscriber
// is logged and skipped, never propagated.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe registers fn for every alert and returns its handle.
func (b *Bus) Subscribe(fn AlertCallback) int {
	return b.add(fn, false)
}

// SubscribeEmergency registers fn for EMERGENCY alerts only.
func (b *Bus) SubscribeEmergency(fn AlertCallback) int {
	return b.add(fn, true)
}

func (b *Bus) add(fn AlertCallback, emergencyOnly bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = subscriber{fn: fn, emergencyOnly: emergencyOnly}
	return b.nextID
}

// Unsubscribe removes a handle; unknown handles are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish delivers alert to the matching subscribers.
func (b *Bus) Publish(alert Alert) {
	targets := b.snapshot(alert.Kind == KindEmergency)
	if len(targets) == 0 {
		return
	}
	if alert.Kind == KindEmergency {
		deliver(targets, alert)
		return
	}
	go deliver(targets, alert)
}

func (b *Bus) snapshot(emergency bool) []AlertCallback {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AlertCallback, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.emergencyOnly && !emergency {
			continue
		}
		out = append(out, sub.fn)
	}
	return out
}

func deliver(targets []AlertCallback, alert Alert) {
	for _, fn := range targets {
		invoke(fn, alert)
	}
	observ.IncCounter("alerts_delivered_total", map[string]string{"kind": string(alert.Kind)})
}

// invoke isolates one subscriber: a panic is logged and swallowed so the
// remaining subscribers still get the alert.
func invoke(fn AlertCallback, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			observ.Warn("alert_subscriber_panic", map[string]any{
				"alert_id": alert.ID,
				"kind":     string(alert.Kind),
				"panic":    r,
			})
			observ.IncCounter("alert_subscriber_panics_total", nil)
		}
	}()
	fn(alert)
}
