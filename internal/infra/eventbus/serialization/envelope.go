package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
)

// UniversalEnvelope wraps a serialized payload with its event type so consumers
// can route the bytes to the correct deserializer without knowing the payload
// shape up front. Every message on the bus is one of these.
type UniversalEnvelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   []byte           `json:"payload"`
}

// SerializeEventEnvelope serializes a domain payload via its registered
// serializer and wraps the result in a UniversalEnvelope ready for the wire.
func SerializeEventEnvelope(eventType events.EventType, payload any) ([]byte, error) {
	payloadBytes, err := SerializePayload(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("serialize payload for eventType=%s: %w", eventType, err)
	}

	envelope := UniversalEnvelope{EventType: eventType, Payload: payloadBytes}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for eventType=%s: %w", eventType, err)
	}
	return data, nil
}

// UnmarshalUniversalEnvelope splits wire bytes into the event type and the
// still-serialized payload. Callers pass the payload to DeserializePayload
// once they have decided to handle the event type.
func UnmarshalUniversalEnvelope(data []byte) (events.EventType, []byte, error) {
	var envelope UniversalEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("unmarshal universal envelope: %w", err)
	}
	if envelope.EventType == "" {
		return "", nil, fmt.Errorf("universal envelope missing event type")
	}
	return envelope.EventType, envelope.Payload, nil
}
