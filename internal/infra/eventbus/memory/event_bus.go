// Package memory provides an in-memory implementation of the event bus.
// It offers a lightweight, non-persistent broker suitable for testing and
// single-process deployments where durability is not required.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
)

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements events.EventBus with synchronous in-process delivery.
// Handlers run on the publisher's goroutine in subscription order, so events
// published from one goroutine are observed in publish order.
type EventBus struct {
	mu     sync.RWMutex
	closed bool

	handlers map[events.EventType][]events.HandlerFunc
}

// NewEventBus creates an in-memory event bus with no registered handlers.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[events.EventType][]events.HandlerFunc)}
}

// Subscribe registers a handler for the given event types. The handler stays
// registered until the provided context is canceled.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("event bus is closed")
	}
	// Remember where each registration landed so cancellation can clear it
	// without shifting the slots of later subscribers.
	indices := make(map[events.EventType]int, len(eventTypes))
	for _, et := range eventTypes {
		indices[et] = len(b.handlers[et])
		b.handlers[et] = append(b.handlers[et], handler)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for et, idx := range indices {
			if hs := b.handlers[et]; idx < len(hs) {
				hs[idx] = nil
			}
		}
	}()

	return nil
}

// Publish delivers the event to every handler subscribed to its type,
// stopping at the first handler error. Handlers are copied before iteration
// to avoid holding the lock while executing them.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pParams events.PublishParams
	for _, opt := range opts {
		opt(&pParams)
	}
	if pParams.Key != "" {
		event.Key = pParams.Key
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	handlersCopy := make([]events.HandlerFunc, len(b.handlers[event.Type]))
	copy(handlersCopy, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlersCopy {
		if handler == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Delivery is synchronous, so there is no offset to commit.
		if err := handler(ctx, event, func(error) {}); err != nil {
			return err
		}
	}
	return nil
}

// Close drops all handlers and rejects further publishes and subscriptions.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[events.EventType][]events.HandlerFunc)
	return nil
}
