package events

import "context"

// EventHandler consumes domain events delivered by the dispatcher. A handler
// advertises the event types it wants and receives every matching envelope,
// along with the ack callback for the underlying transport.
type EventHandler interface {
	// HandleEvent processes one envelope. The handler owns the ack: it must
	// invoke it exactly once on every path, success or failure.
	HandleEvent(ctx context.Context, evt EventEnvelope, ack AckFunc) error

	// SupportedEvents lists the event types this handler subscribes to.
	SupportedEvents() []EventType
}
