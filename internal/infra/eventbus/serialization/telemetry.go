package serialization

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	serializationerrors "github.com/ahrav/telemetry-armada/internal/infra/eventbus/serialization/errors"
)

// timeWindowDTO is the wire representation of a telemetry.TimeWindow.
// Bounds are epoch seconds, matching the domain constructor.
type timeWindowDTO struct {
	StartSecond int64  `json:"start_second"`
	EndSecond   int64  `json:"end_second"`
	Resolution  string `json:"resolution"`
}

func timeWindowToDTO(w telemetry.TimeWindow) timeWindowDTO {
	return timeWindowDTO{
		StartSecond: w.StartSecond(),
		EndSecond:   w.EndSecond(),
		Resolution:  string(w.Resolution()),
	}
}

func timeWindowFromDTO(dto timeWindowDTO) (telemetry.TimeWindow, error) {
	w, err := telemetry.NewTimeWindow(dto.StartSecond, dto.EndSecond, telemetry.Resolution(dto.Resolution))
	if err != nil {
		return telemetry.TimeWindow{}, serializationerrors.ErrInvalidWindow{Err: err}
	}
	return w, nil
}

type queryCompletedDTO struct {
	QueryID     string        `json:"query_id"`
	DeviceID    string        `json:"device_id"`
	PropertyIDs []string      `json:"property_ids"`
	Window      timeWindowDTO `json:"window"`
	OccurredAt  int64         `json:"occurred_at"`
}

// serializeQueryCompleted converts a telemetry.QueryCompletedEvent to JSON bytes.
func serializeQueryCompleted(payload any) ([]byte, error) {
	event, ok := payload.(telemetry.QueryCompletedEvent)
	if !ok {
		return nil, fmt.Errorf("serializeQueryCompleted: payload is not telemetry.QueryCompletedEvent")
	}
	return json.Marshal(queryCompletedDTO{
		QueryID:     event.QueryID.String(),
		DeviceID:    event.DeviceID,
		PropertyIDs: event.PropertyIDs,
		Window:      timeWindowToDTO(event.Window),
		OccurredAt:  event.OccurredAt().UnixNano(),
	})
}

// deserializeQueryCompleted converts JSON bytes back into a telemetry.QueryCompletedEvent.
func deserializeQueryCompleted(data []byte) (any, error) {
	var dto queryCompletedDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal QueryCompleted: %w", err)
	}

	queryID, err := uuid.Parse(dto.QueryID)
	if err != nil {
		return nil, serializationerrors.ErrInvalidUUID{Field: "query ID", Err: err}
	}
	window, err := timeWindowFromDTO(dto.Window)
	if err != nil {
		return nil, err
	}

	return telemetry.NewQueryCompletedEvent(queryID, dto.DeviceID, dto.PropertyIDs, window), nil
}

type queryFailedDTO struct {
	QueryID     string        `json:"query_id"`
	DeviceID    string        `json:"device_id"`
	PropertyIDs []string      `json:"property_ids"`
	Window      timeWindowDTO `json:"window"`
	Attempts    int           `json:"attempts"`
	Reason      string        `json:"reason"`
	OccurredAt  int64         `json:"occurred_at"`
}

// serializeQueryFailed converts a telemetry.QueryFailedEvent to JSON bytes.
func serializeQueryFailed(payload any) ([]byte, error) {
	event, ok := payload.(telemetry.QueryFailedEvent)
	if !ok {
		return nil, fmt.Errorf("serializeQueryFailed: payload is not telemetry.QueryFailedEvent")
	}
	return json.Marshal(queryFailedDTO{
		QueryID:     event.QueryID.String(),
		DeviceID:    event.DeviceID,
		PropertyIDs: event.PropertyIDs,
		Window:      timeWindowToDTO(event.Window),
		Attempts:    event.Attempts,
		Reason:      event.Reason,
		OccurredAt:  event.OccurredAt().UnixNano(),
	})
}

// deserializeQueryFailed converts JSON bytes back into a telemetry.QueryFailedEvent.
func deserializeQueryFailed(data []byte) (any, error) {
	var dto queryFailedDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal QueryFailed: %w", err)
	}

	queryID, err := uuid.Parse(dto.QueryID)
	if err != nil {
		return nil, serializationerrors.ErrInvalidUUID{Field: "query ID", Err: err}
	}
	window, err := timeWindowFromDTO(dto.Window)
	if err != nil {
		return nil, err
	}

	return telemetry.NewQueryFailedEvent(queryID, dto.DeviceID, dto.PropertyIDs, window, dto.Attempts, dto.Reason), nil
}

type currentValueUpdatedDTO struct {
	DeviceID   string  `json:"device_id"`
	PropertyID string  `json:"property_id"`
	Timestamp  int64   `json:"timestamp"`
	Value      float64 `json:"value"`
	OccurredAt int64   `json:"occurred_at"`
}

// serializeCurrentValueUpdated converts a telemetry.CurrentValueUpdatedEvent to JSON bytes.
func serializeCurrentValueUpdated(payload any) ([]byte, error) {
	event, ok := payload.(telemetry.CurrentValueUpdatedEvent)
	if !ok {
		return nil, fmt.Errorf("serializeCurrentValueUpdated: payload is not telemetry.CurrentValueUpdatedEvent")
	}
	return json.Marshal(currentValueUpdatedDTO{
		DeviceID:   event.DeviceID,
		PropertyID: event.PropertyID,
		Timestamp:  event.Value.Timestamp.UnixNano(),
		Value:      event.Value.Value,
		OccurredAt: event.OccurredAt().UnixNano(),
	})
}

// deserializeCurrentValueUpdated converts JSON bytes back into a telemetry.CurrentValueUpdatedEvent.
func deserializeCurrentValueUpdated(data []byte) (any, error) {
	var dto currentValueUpdatedDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal CurrentValueUpdated: %w", err)
	}

	value := telemetry.CurrentValue{
		Timestamp: time.Unix(0, dto.Timestamp).UTC(),
		Value:     dto.Value,
	}
	return telemetry.NewCurrentValueUpdatedEvent(dto.DeviceID, dto.PropertyID, value), nil
}
