package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/riskguard/internal/risk"
)

func criticalAlert(id, message string) risk.Alert {
	return risk.Alert{
		ID:        id,
		Timestamp: time.Now(),
		Kind:      risk.KindCritical,
		Message:   message,
		Symbol:    "X",
		Severity:  8,
	}
}

func TestNotifyFiltersAndDedupes(t *testing.T) {
	// No worker started: the queue length shows exactly what was admitted.
	w := NewWebhookNotifier(Config{Enabled: true, URL: "http://unused", MinSeverity: 5})

	w.Notify(criticalAlert("a1", "VaR95 breach"))
	require.Len(t, w.queue, 1)

	// Same kind/symbol/message within the window: deduped.
	w.Notify(criticalAlert("a2", "VaR95 breach"))
	require.Len(t, w.queue, 1)

	// Different message passes.
	w.Notify(criticalAlert("a3", "drawdown breach"))
	require.Len(t, w.queue, 2)

	// Below minimum severity: filtered.
	low := criticalAlert("a4", "minor")
	low.Severity = 3
	w.Notify(low)
	require.Len(t, w.queue, 2)
}

func TestNotifyDisabled(t *testing.T) {
	w := NewWebhookNotifier(Config{Enabled: false, URL: "http://unused"})
	w.Notify(criticalAlert("a1", "anything"))
	require.Len(t, w.queue, 0)
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	w := NewWebhookNotifier(Config{Enabled: true, URL: "http://unused", QueueSize: 1})

	w.Notify(criticalAlert("a1", "first"))
	w.Notify(criticalAlert("a2", "second")) // queue full: dropped, not blocked
	require.Len(t, w.queue, 1)
}

func TestDelivery(t *testing.T) {
	received := make(chan risk.Alert, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var a risk.Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		received <- a
	}))
	defer srv.Close()

	w := NewWebhookNotifier(Config{
		Enabled:       true,
		URL:           srv.URL,
		RatePerMinute: 6000,
		Burst:         10,
	})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	w.Notify(criticalAlert("a1", "VaR95 breach"))

	select {
	case a := <-received:
		require.Equal(t, "a1", a.ID)
		require.Equal(t, risk.KindCritical, a.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never delivered")
	}

	cancel()
	w.Wait()
}

func TestDeliveryRetriesOnServerError(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		close(done)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(Config{
		Enabled:       true,
		URL:           srv.URL,
		RatePerMinute: 6000,
		Burst:         10,
		MaxRetries:    3,
	})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	w.Notify(criticalAlert("a1", "VaR95 breach"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was not retried")
	}
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))

	cancel()
	w.Wait()
}
