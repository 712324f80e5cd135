package risk

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/riskguard/internal/observ"
	"github.com/Rajchodisetti/riskguard/pkg/id"
)

// EmergencyController is the terminal circuit breaker: once tripped, every
// admission check denies until an explicit external reset. The evaluator can
// trip it; nothing inside the engine can reset it.
//
// Not self-locking: the engine owns it and serializes all access.
type EmergencyController struct {
	tripped   bool
	reason    string
	trippedAt time.Time
	tripCount int

	// onTrip runs synchronously with the state change so subscribers observe
	// the tripped state and the emergency alert together. Set by the engine.
	onTrip func(Alert)
}

func NewEmergencyController(onTrip func(Alert)) *EmergencyController {
	return &EmergencyController{onTrip: onTrip}
}

// Trip moves the controller to the tripped state. Idempotent: tripping while
// already tripped is a no-op and keeps the original reason.
func (c *EmergencyController) Trip(symbol, reason string, now time.Time) {
	if c.tripped {
		return
	}
	c.tripped = true
	c.reason = reason
	c.trippedAt = now
	c.tripCount++

	observ.IncCounter("emergency_trips_total", nil)
	observ.Log("emergency_tripped", map[string]any{"symbol": symbol, "reason": reason})

	if c.onTrip != nil {
		c.onTrip(Alert{
			ID:                id.New(),
			Timestamp:         now,
			Kind:              KindEmergency,
			Message:           fmt.Sprintf("emergency stop: %s", reason),
			Symbol:            symbol,
			Severity:          10,
			RecommendedAction: "halt all trading until manually cleared",
		})
	}
}

// Reset clears the tripped state. This is the single external authority that
// returns the engine to running; it is exposed through the integration
// bridge, never called by the evaluator.
func (c *EmergencyController) Reset(operator, reason string, now time.Time) error {
	if !c.tripped {
		return fmt.Errorf("emergency controller not tripped")
	}
	c.tripped = false
	observ.IncCounter("emergency_resets_total", nil)
	observ.Log("emergency_reset", map[string]any{
		"operator":       operator,
		"reason":         reason,
		"tripped_for_ms": now.Sub(c.trippedAt).Milliseconds(),
		"trip_reason":    c.reason,
	})
	c.reason = ""
	return nil
}

func (c *EmergencyController) Tripped() bool { return c.tripped }

func (c *EmergencyController) Reason() string { return c.reason }

func (c *EmergencyController) TrippedAt() time.Time { return c.trippedAt }
