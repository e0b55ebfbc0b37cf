package events

import (
	"context"
	"time"
)

// EventMetadata carries transport-level position information for a consumed
// event. In-process buses leave it zero valued.
type EventMetadata struct {
	// Partition identifies the stream partition the event was consumed from.
	Partition int32
	// Offset is the event's position within its partition.
	Offset int64
}

// EventEnvelope wraps a domain event payload with the routing and transport
// details buses need to deliver it.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier events can be grouped or partitioned by.
	Key string

	// Timestamp records when this envelope was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any

	// Metadata carries transport position details for consumed events.
	Metadata EventMetadata
}

// AckFunc acknowledges the handling outcome of a consumed event. A nil error
// marks the event as processed; a non-nil error reports a handling failure to
// the transport.
type AckFunc func(error)

// HandlerFunc processes a single event envelope. Implementations must invoke
// ack exactly once when the transport requires acknowledgment.
type HandlerFunc func(ctx context.Context, envelope EventEnvelope, ack AckFunc) error
