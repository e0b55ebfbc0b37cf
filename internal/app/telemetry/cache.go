package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	domain "github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/pkg/common/logger"
)

// AggregateCache serves time-windowed aggregate series out of the backing
// store and turns misses into fetch requests. Lookups never block: a miss
// registers the need with the cache's request coordinator and returns
// absent, and consumers learn about arrival through the query completed
// event published after ingest.
type AggregateCache struct {
	store       domain.AggregateStore
	coordinator *RequestCoordinator
	publisher   events.DomainEventPublisher

	logger  *logger.Logger
	metrics metrics
	tracer  trace.Tracer
}

var _ ResultSink = (*AggregateCache)(nil)

// NewAggregateCache wires the cache to its store and builds the request
// coordinator that fills misses through gateway. The store doubles as the
// coordinator's failure recorder.
func NewAggregateCache(
	gateway domain.ProviderGateway,
	store domain.AggregateStore,
	publisher events.DomainEventPublisher,
	logger *logger.Logger,
	metrics metrics,
	tracer trace.Tracer,
	opts ...CoordinatorOption,
) *AggregateCache {
	c := &AggregateCache{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "aggregate_cache"),
		metrics:   metrics,
		tracer:    tracer,
	}
	c.coordinator = NewRequestCoordinator(gateway, c, store, publisher, logger, metrics, tracer, opts...)
	return c
}

// Coordinator returns the request coordinator filling this cache.
func (c *AggregateCache) Coordinator() *RequestCoordinator { return c.coordinator }

// Stop shuts down the request coordinator. Cached data stays readable.
func (c *AggregateCache) Stop(ctx context.Context) { c.coordinator.Stop(ctx) }

// GetAggregateSeries returns the cached series for a (device, property)
// pair in the given window. On a miss it registers a fetch request and
// reports absence; the caller re-queries once the completion event for the
// window arrives.
func (c *AggregateCache) GetAggregateSeries(ctx context.Context, deviceID, propertyID string, window domain.TimeWindow) (*domain.AggregateSeries, bool) {
	ctx, span := c.tracer.Start(ctx, "aggregate_cache.get_aggregate_series",
		trace.WithAttributes(
			attribute.String("device_id", deviceID),
			attribute.String("property_id", propertyID),
			attribute.String("window_key", window.Key()),
		))
	defer span.End()

	series, ok := c.store.GetSeries(ctx, deviceID, propertyID, window.Key())
	if ok {
		c.metrics.IncCacheHits(ctx)
		span.AddEvent("cache_hit")
		return series, true
	}

	c.metrics.IncCacheMisses(ctx)
	span.AddEvent("cache_miss")
	c.coordinator.AddRequest(ctx, deviceID, propertyID, window)
	return nil, false
}

// FetchFailure reports whether the last fetch covering a (device, property,
// window) slot exhausted its attempts, so consumers can distinguish "not
// fetched yet" from "failed".
func (c *AggregateCache) FetchFailure(ctx context.Context, deviceID, propertyID string, window domain.TimeWindow) (domain.FetchFailure, bool) {
	return c.store.FetchFailure(ctx, deviceID, propertyID, window.Key())
}

// Ingest merges fetched aggregates into the store and broadcasts the query
// completed event so consumers watching the window re-query. Results the
// store rejects as stale are dropped without notification.
func (c *AggregateCache) Ingest(ctx context.Context, query domain.AggregateQuery, aggs domain.DeviceAggregates) error {
	ctx, span := c.tracer.Start(ctx, "aggregate_cache.ingest",
		trace.WithAttributes(
			attribute.String("query_id", query.ID().String()),
			attribute.String("device_id", aggs.DeviceID()),
			attribute.String("window_key", aggs.Window().Key()),
			attribute.Int64("fetch_seq", int64(aggs.FetchSeq())),
		))
	defer span.End()

	applied, err := c.store.ApplyAggregates(ctx, aggs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to apply aggregates")
		return err
	}
	if !applied {
		c.metrics.IncIngestsRejected(ctx)
		span.AddEvent("stale_result_dropped")
		c.logger.Debug(ctx, "dropping stale aggregate result",
			"query_id", query.ID().String(),
			"device_id", aggs.DeviceID(),
			"window_key", aggs.Window().Key(),
			"fetch_seq", aggs.FetchSeq())
		return nil
	}

	c.metrics.IncIngestsApplied(ctx)
	evt := domain.NewQueryCompletedEvent(query.ID(), query.DeviceID(), query.PropertyIDs(), query.Window())
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(query.DeviceID())); err != nil {
		span.RecordError(err)
		c.logger.Error(ctx, "failed to publish query completed event",
			"query_id", query.ID().String(),
			"device_id", query.DeviceID(),
			"error", err)
	}
	return nil
}

// UpdateCurrentValue overwrites the live reading of a property the cache
// already tracks and publishes the update. Readings for unknown slots are
// ignored.
func (c *AggregateCache) UpdateCurrentValue(ctx context.Context, deviceID, propertyID string, value domain.CurrentValue) {
	applied := c.store.UpdateCurrentValue(ctx, deviceID, propertyID, value)
	if !applied {
		return
	}

	evt := domain.NewCurrentValueUpdatedEvent(deviceID, propertyID, value)
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(deviceID)); err != nil {
		c.logger.Error(ctx, "failed to publish current value updated event",
			"device_id", deviceID,
			"property_id", propertyID,
			"error", err)
	}
}
