package kafka

import (
	"context"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
)

var _ events.DomainEventPublisher = (*DomainEventPublisher)(nil)

// DomainEventPublisher bridges domain code to the event bus: query outcomes
// and live readings are wrapped in envelopes here so the aggregate cache
// never deals with transport concerns.
type DomainEventPublisher struct {
	eventBus   events.EventBus
	translator *events.DomainEventTranslator
}

// NewDomainEventPublisher returns a publisher that routes domain events
// through bus. The bus decides the topic from the event type.
func NewDomainEventPublisher(bus events.EventBus, translator *events.DomainEventTranslator) *DomainEventPublisher {
	return &DomainEventPublisher{eventBus: bus, translator: translator}
}

// PublishDomainEvent wraps event in an envelope stamped with its occurrence
// time and hands it to the bus, translating any domain-level publish options
// to their bus equivalents.
func (pub *DomainEventPublisher) PublishDomainEvent(
	ctx context.Context,
	event events.DomainEvent,
	domainOpts ...events.PublishOption,
) error {
	evt := events.EventEnvelope{
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Payload:   event,
	}

	opts := pub.translator.ConvertDomainOptions(domainOpts)

	return pub.eventBus.Publish(ctx, evt, opts...)
}
