package events

import "time"

// DomainEvent is implemented by domain event payloads. It exposes the routing
// type and creation time the publishing infrastructure needs; everything else
// about the payload stays private to the owning domain package.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType

	// OccurredAt records when this event was created, enabling temporal tracking
	// and debugging of event flows.
	OccurredAt() time.Time
}
