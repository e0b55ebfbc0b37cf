package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

func TestIsCriticalEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType events.EventType
		want      bool
	}{
		// Critical events - terminal query outcomes.
		{
			name:      "QueryCompleted is critical",
			eventType: telemetry.EventTypeQueryCompleted,
			want:      true,
		},
		{
			name:      "QueryFailed is critical",
			eventType: telemetry.EventTypeQueryFailed,
			want:      true,
		},

		// Non-critical events.
		{
			name:      "CurrentValueUpdated is not critical",
			eventType: telemetry.EventTypeCurrentValueUpdated,
			want:      false,
		},

		// Default case - unknown event type.
		{
			name:      "Unknown event type is not critical",
			eventType: "unknown_event_type",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCriticalEvent(tt.eventType))
		})
	}
}
