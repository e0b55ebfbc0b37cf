// Package events defines the transport-agnostic event contracts the relay
// uses to announce query outcomes and live readings: envelope and payload
// shapes, the publisher and bus ports, and handler registration.
package events

import (
	"context"
)

// DomainEventPublisher is the port domain code publishes through. The cache
// and coordinator only see this interface; whether events land on Kafka or
// the in-process broker is wiring's choice.
type DomainEventPublisher interface {
	// PublishDomainEvent delivers one domain event to every subscriber of
	// its type. Options tune routing, not payload.
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// EventBus moves envelopes between publishers and subscribers across
// whatever transport backs it.
type EventBus interface {
	// Publish sends an envelope to subscribers of its event type.
	Publish(ctx context.Context, event EventEnvelope, opts ...PublishOption) error

	// Subscribe registers handler for the given event types. The handler
	// runs for every matching envelope until the bus closes.
	Subscribe(ctx context.Context, eventTypes []EventType, handler HandlerFunc) error

	// Close drains and shuts down the bus. Call once during teardown.
	Close() error
}
