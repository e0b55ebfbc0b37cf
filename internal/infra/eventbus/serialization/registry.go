// Package serialization maps domain events to and from their JSON wire
// format. Codecs register per event type, so the bus can encode an outgoing
// payload and decode an incoming one knowing only the envelope's type, and
// the domain packages stay free of wire concerns.
package serialization

import (
	"fmt"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

// SerializeFunc encodes a domain payload into wire bytes.
type SerializeFunc func(payload any) ([]byte, error)

// DeserializeFunc decodes wire bytes back into a domain payload.
type DeserializeFunc func(data []byte) (any, error)

// Registration happens during init; lookups thereafter are read-only, so
// the maps need no locking.
var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc installs the encoder for an event type.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc installs the decoder for an event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

// SerializePayload encodes payload with the codec registered for eventType.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	fn, ok := serializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no serializer registered for eventType=%s", eventType)
	}
	return fn(payload)
}

// DeserializePayload decodes data with the codec registered for eventType.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	fn, ok := deserializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no deserializer registered for eventType=%s", eventType)
	}
	return fn(data)
}

func init() {
	RegisterEventSerializers()
}

// RegisterEventSerializers wires the codecs for every event type the relay
// publishes or consumes. It runs from init; calling it again is harmless
// since re-registration just overwrites the same entries.
func RegisterEventSerializers() {
	RegisterSerializeFunc(telemetry.EventTypeQueryCompleted, serializeQueryCompleted)
	RegisterDeserializeFunc(telemetry.EventTypeQueryCompleted, deserializeQueryCompleted)

	RegisterSerializeFunc(telemetry.EventTypeQueryFailed, serializeQueryFailed)
	RegisterDeserializeFunc(telemetry.EventTypeQueryFailed, deserializeQueryFailed)

	RegisterSerializeFunc(telemetry.EventTypeCurrentValueUpdated, serializeCurrentValueUpdated)
	RegisterDeserializeFunc(telemetry.EventTypeCurrentValueUpdated, deserializeCurrentValueUpdated)
}
