// Package alerts forwards engine alerts to an external HTTP endpoint. It is
// an outbound sink at the integration boundary: delivery failures are logged
// and counted, never surfaced to the engine.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/riskguard/internal/observ"
	"github.com/Rajchodisetti/riskguard/internal/risk"
)

// Config configures the webhook notifier.
type Config struct {
	Enabled             bool   `yaml:"enabled" json:"enabled"`
	URL                 string `yaml:"url" json:"url"`
	TimeoutMs           int    `yaml:"timeout_ms" json:"timeout_ms"`
	MinSeverity         int    `yaml:"min_severity" json:"min_severity"`
	RatePerMinute       int    `yaml:"rate_per_minute" json:"rate_per_minute"`
	Burst               int    `yaml:"burst" json:"burst"`
	DedupeWindowSeconds int    `yaml:"dedupe_window_seconds" json:"dedupe_window_seconds"`
	QueueSize           int    `yaml:"queue_size" json:"queue_size"`
	MaxRetries          int    `yaml:"max_retries" json:"max_retries"`
}

func (c Config) withDefaults() Config {
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 5000
	}
	if c.MinSeverity == 0 {
		c.MinSeverity = 5
	}
	if c.RatePerMinute == 0 {
		c.RatePerMinute = 30
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
	if c.DedupeWindowSeconds == 0 {
		c.DedupeWindowSeconds = 60
	}
	if c.QueueSize == 0 {
		c.QueueSize = 128
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	return c
}

// WebhookNotifier posts alerts as JSON. Enqueueing never blocks the caller:
// when the queue is full the alert is dropped and counted. Outbound requests
// are paced by a token-bucket limiter so an alert storm cannot flood the
// receiving endpoint.
type WebhookNotifier struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	queue      chan risk.Alert

	mu     sync.Mutex
	dedupe map[string]time.Time

	wg sync.WaitGroup
}

func NewWebhookNotifier(cfg Config) *WebhookNotifier {
	cfg = cfg.withDefaults()
	return &WebhookNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), cfg.Burst),
		queue:      make(chan risk.Alert, cfg.QueueSize),
		dedupe:     make(map[string]time.Time),
	}
}

// Start launches the delivery worker; it drains until ctx is cancelled.
func (w *WebhookNotifier) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.worker(ctx)
}

// Wait blocks until the worker has exited after cancellation.
func (w *WebhookNotifier) Wait() { w.wg.Wait() }

// Notify is the engine-facing callback. Non-blocking by contract.
func (w *WebhookNotifier) Notify(a risk.Alert) {
	if !w.cfg.Enabled || a.Severity < w.cfg.MinSeverity {
		return
	}
	if w.isDuplicate(a) {
		observ.IncCounter("webhook_alerts_deduped_total", nil)
		return
	}
	select {
	case w.queue <- a:
	default:
		observ.IncCounter("webhook_alerts_dropped_total", nil)
		observ.Warn("webhook_queue_full", map[string]any{"alert_id": a.ID})
	}
}

func (w *WebhookNotifier) isDuplicate(a risk.Alert) bool {
	key := fmt.Sprintf("%s|%s|%s", a.Kind, a.Symbol, a.Message)
	window := time.Duration(w.cfg.DedupeWindowSeconds) * time.Second
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.dedupe[key]; ok && now.Sub(last) < window {
		return true
	}
	w.dedupe[key] = now
	// Age out stale keys so the cache stays bounded.
	for k, t := range w.dedupe {
		if now.Sub(t) > 2*window {
			delete(w.dedupe, k)
		}
	}
	return false
}

func (w *WebhookNotifier) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-w.queue:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.post(ctx, a)
		}
	}
}

func (w *WebhookNotifier) post(ctx context.Context, a risk.Alert) {
	body, err := json.Marshal(a)
	if err != nil {
		observ.Warn("webhook_marshal_failed", map[string]any{"alert_id": a.ID, "error": err.Error()})
		return
	}

	var lastErr error
	for attempt := 0; attempt < w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			observ.IncCounter("webhook_alerts_sent_total", map[string]string{"kind": string(a.Kind)})
			return
		}
		lastErr = fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	observ.IncCounter("webhook_alerts_failed_total", nil)
	observ.Warn("webhook_delivery_failed", map[string]any{"alert_id": a.ID, "error": fmt.Sprint(lastErr)})
}
