package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

type stubEventBus struct {
	publishFunc func(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error
}

func (s *stubEventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	return s.publishFunc(ctx, event, opts...)
}

func (s *stubEventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	return nil
}

func (s *stubEventBus) Close() error { return nil }

func completedEvent(t *testing.T) telemetry.QueryCompletedEvent {
	t.Helper()
	window, err := telemetry.NewTimeWindow(1700000000, 1700003600, telemetry.ResolutionHour)
	require.NoError(t, err)
	return telemetry.NewQueryCompletedEvent(uuid.New(), "device-7", []string{"temp", "humidity"}, window)
}

func TestPublishDomainEventWrapsEnvelope(t *testing.T) {
	ctx := context.Background()
	event := completedEvent(t)

	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			assert.Equal(t, telemetry.EventTypeQueryCompleted, evt.Type)
			assert.Equal(t, event.OccurredAt(), evt.Timestamp)
			assert.Equal(t, event, evt.Payload)
			return nil
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())
	assert.NoError(t, publisher.PublishDomainEvent(ctx, event))
}

func TestPublishDomainEventPropagatesBusError(t *testing.T) {
	ctx := context.Background()

	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			return errors.New("publish failed")
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())
	err := publisher.PublishDomainEvent(ctx, completedEvent(t))
	require.Error(t, err)
	assert.Equal(t, "publish failed", err.Error())
}

func TestPublishDomainEventTranslatesOptions(t *testing.T) {
	ctx := context.Background()

	var receivedOpts []events.PublishOption
	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			receivedOpts = opts
			return nil
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())

	err := publisher.PublishDomainEvent(ctx, completedEvent(t), events.WithKey("device-7"))
	require.NoError(t, err)
	require.Len(t, receivedOpts, 1, "bus should receive exactly one option")

	params := &events.PublishParams{}
	receivedOpts[0](params)
	assert.Equal(t, "device-7", params.Key)
}

func TestPublishDomainEventCarriesKeyAndHeaders(t *testing.T) {
	ctx := context.Background()

	var receivedOpts []events.PublishOption
	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			receivedOpts = opts
			return nil
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())
	err := publisher.PublishDomainEvent(ctx, completedEvent(t),
		events.WithKey("device-7"),
		events.WithHeaders(map[string]string{"origin": "relay-1"}),
	)
	require.NoError(t, err)

	params := &events.PublishParams{}
	for _, opt := range receivedOpts {
		opt(params)
	}
	assert.Equal(t, "device-7", params.Key)
	assert.Equal(t, "relay-1", params.Headers["origin"])
}

func TestPublishDomainEventCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			return ctx.Err()
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())
	err := publisher.PublishDomainEvent(ctx, completedEvent(t))
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}

func TestPublishDomainEventConcurrent(t *testing.T) {
	ctx := context.Background()
	event := completedEvent(t)

	var publishCount int32
	bus := &stubEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			atomic.AddInt32(&publishCount, 1)
			return nil
		},
	}

	publisher := NewDomainEventPublisher(bus, events.NewDomainEventTranslator())

	var wg sync.WaitGroup
	const numGoroutines = 10
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, publisher.PublishDomainEvent(ctx, event))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(numGoroutines), atomic.LoadInt32(&publishCount))
}
