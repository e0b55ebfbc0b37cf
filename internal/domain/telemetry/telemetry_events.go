package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
)

// Event types relevant to aggregate queries and live values:
const (
	EventTypeQueryCompleted      events.EventType = "AggregateQueryCompleted"
	EventTypeQueryFailed         events.EventType = "AggregateQueryFailed"
	EventTypeCurrentValueUpdated events.EventType = "CurrentValueUpdated"
)

// QueryCompletedEvent signals that fetched aggregates for a device were
// merged into the cache. Views watching the window re-read the affected
// slots when they receive it.
type QueryCompletedEvent struct {
	occurredAt  time.Time
	QueryID     uuid.UUID
	DeviceID    string
	PropertyIDs []string
	Window      TimeWindow
}

// NewQueryCompletedEvent creates a query completed event.
func NewQueryCompletedEvent(queryID uuid.UUID, deviceID string, propertyIDs []string, window TimeWindow) QueryCompletedEvent {
	return QueryCompletedEvent{
		occurredAt:  time.Now(),
		QueryID:     queryID,
		DeviceID:    deviceID,
		PropertyIDs: propertyIDs,
		Window:      window,
	}
}

func (e QueryCompletedEvent) EventType() events.EventType { return EventTypeQueryCompleted }
func (e QueryCompletedEvent) OccurredAt() time.Time       { return e.occurredAt }

// QueryFailedEvent signals that a query exhausted its retry budget and was
// dropped. The affected cache slots stay empty until a new request triggers
// another fetch.
type QueryFailedEvent struct {
	occurredAt  time.Time
	QueryID     uuid.UUID
	DeviceID    string
	PropertyIDs []string
	Window      TimeWindow
	Attempts    int
	Reason      string
}

// NewQueryFailedEvent creates a query failed event.
func NewQueryFailedEvent(queryID uuid.UUID, deviceID string, propertyIDs []string, window TimeWindow, attempts int, reason string) QueryFailedEvent {
	return QueryFailedEvent{
		occurredAt:  time.Now(),
		QueryID:     queryID,
		DeviceID:    deviceID,
		PropertyIDs: propertyIDs,
		Window:      window,
		Attempts:    attempts,
		Reason:      reason,
	}
}

func (e QueryFailedEvent) EventType() events.EventType { return EventTypeQueryFailed }
func (e QueryFailedEvent) OccurredAt() time.Time       { return e.occurredAt }

// CurrentValueUpdatedEvent signals that the instantaneous reading of a
// property changed.
type CurrentValueUpdatedEvent struct {
	occurredAt time.Time
	DeviceID   string
	PropertyID string
	Value      CurrentValue
}

// NewCurrentValueUpdatedEvent creates a current value updated event.
func NewCurrentValueUpdatedEvent(deviceID, propertyID string, value CurrentValue) CurrentValueUpdatedEvent {
	return CurrentValueUpdatedEvent{
		occurredAt: time.Now(),
		DeviceID:   deviceID,
		PropertyID: propertyID,
		Value:      value,
	}
}

func (e CurrentValueUpdatedEvent) EventType() events.EventType { return EventTypeCurrentValueUpdated }
func (e CurrentValueUpdatedEvent) OccurredAt() time.Time       { return e.occurredAt }
