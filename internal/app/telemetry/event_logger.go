package telemetry

import (
	"context"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	domain "github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/pkg/common/logger"
)

// EventLogger is the relay's diagnostic tail on the event bus. It consumes
// the result and live-value events the relay publishes and logs them, so an
// operator can follow query outcomes without attaching a downstream view.
type EventLogger struct{ logger *logger.Logger }

var _ events.EventHandler = (*EventLogger)(nil)

// NewEventLogger creates a handler that logs telemetry events.
func NewEventLogger(logger *logger.Logger) *EventLogger {
	return &EventLogger{logger: logger.With("component", "event_logger")}
}

// SupportedEvents returns the event types this handler can process.
func (l *EventLogger) SupportedEvents() []events.EventType {
	return []events.EventType{
		domain.EventTypeQueryCompleted,
		domain.EventTypeQueryFailed,
		domain.EventTypeCurrentValueUpdated,
	}
}

// HandleEvent logs the event at a level matching its weight: completions at
// info, exhausted failures at warn, live readings at debug. The event is
// acknowledged unconditionally; a dropped log line is not worth a redelivery.
func (l *EventLogger) HandleEvent(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	switch payload := evt.Payload.(type) {
	case domain.QueryCompletedEvent:
		l.logger.Info(ctx, "aggregate query completed",
			"query_id", payload.QueryID.String(),
			"device_id", payload.DeviceID,
			"property_count", len(payload.PropertyIDs),
			"window_key", payload.Window.Key())

	case domain.QueryFailedEvent:
		l.logger.Warn(ctx, "aggregate query failed",
			"query_id", payload.QueryID.String(),
			"device_id", payload.DeviceID,
			"property_count", len(payload.PropertyIDs),
			"window_key", payload.Window.Key(),
			"attempts", payload.Attempts,
			"reason", payload.Reason)

	case domain.CurrentValueUpdatedEvent:
		l.logger.Debug(ctx, "current value updated",
			"device_id", payload.DeviceID,
			"property_id", payload.PropertyID,
			"value", payload.Value.Value,
			"timestamp", payload.Value.Timestamp)

	default:
		l.logger.Debug(ctx, "unrecognized event payload", "event_type", evt.Type)
	}

	ack(nil)
	return nil
}
