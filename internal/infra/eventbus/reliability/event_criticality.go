// Package reliability classifies event types by how costly it is to lose
// one. Transports without built-in durability, and queue-order decisions
// like front-insertion, key off this classification.
package reliability

import (
	"github.com/ahrav/telemetry-armada/internal/domain/events"
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

// IsCriticalEvent reports whether an event type must not be dropped.
// An event is critical when nothing later on the stream will carry the
// same information again.
func IsCriticalEvent(eventType events.EventType) bool {
	switch eventType {
	case telemetry.EventTypeQueryCompleted, telemetry.EventTypeQueryFailed:
		// Query outcomes are terminal: a consumer that misses one keeps
		// showing a stale or empty slot until a new request is made.
		return true

	case telemetry.EventTypeCurrentValueUpdated:
		// Live readings are superseded by the next reading.
		return false

	default:
		return false
	}
}
