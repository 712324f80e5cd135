package risk

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBusEmergencyDeliveredSynchronously(t *testing.T) {
	bus := NewBus()
	var all, emergencyOnly int32

	bus.Subscribe(func(a Alert) { atomic.AddInt32(&all, 1) })
	bus.SubscribeEmergency(func(a Alert) { atomic.AddInt32(&emergencyOnly, 1) })

	bus.Publish(Alert{ID: "a1", Kind: KindEmergency, Severity: 10})

	// Synchronous path: both counters are visible immediately.
	if atomic.LoadInt32(&all) != 1 || atomic.LoadInt32(&emergencyOnly) != 1 {
		t.Fatalf("emergency must reach both subscriber sets synchronously, got %d/%d", all, emergencyOnly)
	}
}

func TestBusEmergencyOnlySkipsWarnings(t *testing.T) {
	bus := NewBus()
	got := make(chan Alert, 2)
	var emergencyHits int32

	bus.Subscribe(func(a Alert) { got <- a })
	bus.SubscribeEmergency(func(a Alert) { atomic.AddInt32(&emergencyHits, 1) })

	bus.Publish(Alert{ID: "w1", Kind: KindWarning, Severity: 5})

	select {
	case a := <-got:
		if a.ID != "w1" {
			t.Fatalf("unexpected alert %+v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async delivery never arrived")
	}
	if atomic.LoadInt32(&emergencyHits) != 0 {
		t.Fatal("emergency-only subscriber must not see warnings")
	}
}

func TestBusPanicIsolation(t *testing.T) {
	bus := NewBus()
	var survived int32

	bus.Subscribe(func(a Alert) { panic("subscriber bug") })
	bus.Subscribe(func(a Alert) { atomic.AddInt32(&survived, 1) })

	// Emergency delivery is synchronous, so a propagated panic would fail here.
	bus.Publish(Alert{ID: "e1", Kind: KindEmergency, Severity: 10})

	if atomic.LoadInt32(&survived) != 1 {
		t.Fatal("panicking subscriber must not starve the others")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var hits int32

	handle := bus.Subscribe(func(a Alert) { atomic.AddInt32(&hits, 1) })
	bus.Unsubscribe(handle)
	bus.Unsubscribe(9999) // unknown handles are ignored

	bus.Publish(Alert{ID: "e1", Kind: KindEmergency, Severity: 10})
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("unsubscribed callback must not fire")
	}
}
