// Package telemetry implements the application services that coordinate
// aggregate fetching: a debounced request pool that batches cache misses
// into per-device queries, and the cache facade that serves aggregates and
// publishes completion events.
package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/telemetry-armada/internal/domain/events"
	domain "github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/internal/infra/runner"
	"github.com/ahrav/telemetry-armada/pkg/common/logger"
	"github.com/ahrav/telemetry-armada/pkg/common/timeutil"
)

// metrics defines the interface for tracking request coordination and cache
// activity. It embeds the runner metrics so one collector can serve the
// coordinator's fetch runner as well.
type metrics interface {
	runner.Metrics

	IncRequestsAccepted(ctx context.Context)
	IncRequestsDeduplicated(ctx context.Context)
	IncRequestsDiscarded(ctx context.Context, count int)
	ObserveFlushBatchSize(ctx context.Context, devices int)
	ObserveFetchDuration(ctx context.Context, d time.Duration)
	IncFetchRetries(ctx context.Context)
	IncFetchesExhausted(ctx context.Context)
	IncCacheHits(ctx context.Context)
	IncCacheMisses(ctx context.Context)
	IncIngestsApplied(ctx context.Context)
	IncIngestsRejected(ctx context.Context)
}

// ResultSink consumes the normalized aggregates a fetch produced, keyed by
// the query that originated them.
type ResultSink interface {
	Ingest(ctx context.Context, query domain.AggregateQuery, aggs domain.DeviceAggregates) error
}

// FailureRecorder persists a marker for queries whose retries were
// exhausted so later lookups can distinguish "never fetched" from "failed".
type FailureRecorder interface {
	RecordFetchFailure(ctx context.Context, failure domain.FetchFailure)
}

const (
	defaultQuietPeriod      = 100 * time.Millisecond
	defaultRetryDelay       = 3 * time.Second
	defaultMaxAttempts      = 4
	defaultFetchConcurrency = 6
)

// CoordinatorOption configures a RequestCoordinator.
type CoordinatorOption func(*RequestCoordinator)

// WithQuietPeriod sets how long the coordinator waits after the last
// request before flushing the pending batch.
func WithQuietPeriod(d time.Duration) CoordinatorOption {
	return func(rc *RequestCoordinator) { rc.quietPeriod = d }
}

// WithRetryDelay sets the fixed delay between fetch attempts.
func WithRetryDelay(d time.Duration) CoordinatorOption {
	return func(rc *RequestCoordinator) { rc.retryDelay = d }
}

// WithMaxAttempts sets how many times a query is attempted in total before
// it is recorded as failed. Values below one are clamped to one.
func WithMaxAttempts(n int) CoordinatorOption {
	return func(rc *RequestCoordinator) {
		if n < 1 {
			n = 1
		}
		rc.maxAttempts = n
	}
}

// WithFetchConcurrency sets the concurrency ceiling of the coordinator's
// fetch runner.
func WithFetchConcurrency(n int) CoordinatorOption {
	return func(rc *RequestCoordinator) { rc.fetchConcurrency = n }
}

// WithCoordinatorTimeProvider overrides the clock used for failure
// timestamps.
func WithCoordinatorTimeProvider(tp timeutil.Provider) CoordinatorOption {
	return func(rc *RequestCoordinator) { rc.timeProvider = tp }
}

// pendingKey identifies one requested (device, property) pair within the
// active window.
type pendingKey struct{ deviceID, propertyID string }

// RequestCoordinator accumulates aggregate requests for exactly one active
// time window, deduplicates them, and debounces bursts into one batched
// query per device. Batched queries run as fetch tasks on the coordinator's
// own runner; failed fetches are re-submitted with a fixed delay until the
// attempt budget is spent.
//
// Requests always target the active window. Adopting a new window discards
// everything still pending for the old one, but fetches already dispatched
// keep running and their results are still ingested.
type RequestCoordinator struct {
	gateway   domain.ProviderGateway
	sink      ResultSink
	failures  FailureRecorder
	publisher events.DomainEventPublisher

	runner *runner.TaskRunner

	quietPeriod      time.Duration
	retryDelay       time.Duration
	maxAttempts      int
	fetchConcurrency int

	mu      sync.Mutex
	window  domain.TimeWindow
	pending map[pendingKey]struct{}
	timer   *time.Timer
	// flushGen invalidates quiet-period timers superseded by a later
	// request, so a flush that lost the race to a restart is a no-op.
	flushGen uint64
	fetchSeq uint64
	stopped  bool

	timeProvider timeutil.Provider

	logger  *logger.Logger
	metrics metrics
	tracer  trace.Tracer
}

// NewRequestCoordinator creates a coordinator that fetches through gateway,
// hands results to sink, and records exhausted queries with failures.
func NewRequestCoordinator(
	gateway domain.ProviderGateway,
	sink ResultSink,
	failures FailureRecorder,
	publisher events.DomainEventPublisher,
	logger *logger.Logger,
	metrics metrics,
	tracer trace.Tracer,
	opts ...CoordinatorOption,
) *RequestCoordinator {
	rc := &RequestCoordinator{
		gateway:          gateway,
		sink:             sink,
		failures:         failures,
		publisher:        publisher,
		quietPeriod:      defaultQuietPeriod,
		retryDelay:       defaultRetryDelay,
		maxAttempts:      defaultMaxAttempts,
		fetchConcurrency: defaultFetchConcurrency,
		pending:          make(map[pendingKey]struct{}),
		timeProvider:     timeutil.Default(),
		logger:           logger.With("component", "request_coordinator"),
		metrics:          metrics,
		tracer:           tracer,
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.runner = runner.NewTaskRunner(
		"aggregate_fetch",
		logger,
		metrics,
		tracer,
		runner.WithConcurrency(rc.fetchConcurrency),
	)
	return rc
}

// AddRequest registers that window-scoped aggregates are needed for a
// (device, property) pair. Duplicate requests collapse into one pending
// entry; a request for a different window first discards everything pending
// for the old one. Every call restarts the quiet-period timer, so the batch
// flushes only once requests stop arriving. AddRequest never blocks on
// fetching.
func (rc *RequestCoordinator) AddRequest(ctx context.Context, deviceID, propertyID string, window domain.TimeWindow) {
	ctx, span := rc.tracer.Start(ctx, "request_coordinator.add_request",
		trace.WithAttributes(
			attribute.String("device_id", deviceID),
			attribute.String("property_id", propertyID),
			attribute.String("window_key", window.Key()),
		))
	defer span.End()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.stopped {
		span.AddEvent("coordinator_stopped")
		return
	}

	if !rc.window.Equals(window) {
		if dropped := len(rc.pending); dropped > 0 {
			rc.metrics.IncRequestsDiscarded(ctx, dropped)
			rc.logger.Info(ctx, "active window changed, discarding pending requests",
				"dropped", dropped,
				"old_window_key", rc.window.Key(),
				"new_window_key", window.Key())
			span.AddEvent("pending_requests_discarded")
		}
		rc.pending = make(map[pendingKey]struct{})
		rc.window = window
	}

	key := pendingKey{deviceID: deviceID, propertyID: propertyID}
	if _, exists := rc.pending[key]; exists {
		rc.metrics.IncRequestsDeduplicated(ctx)
	} else {
		rc.pending[key] = struct{}{}
		rc.metrics.IncRequestsAccepted(ctx)
	}

	rc.restartQuietTimerLocked()
}

// Stop halts the quiet-period timer and drops whatever is still pending.
// Fetches already dispatched run to completion; retries scheduled after
// Stop are discarded.
func (rc *RequestCoordinator) Stop(ctx context.Context) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.stopped {
		return
	}
	rc.stopped = true
	rc.flushGen++
	if rc.timer != nil {
		rc.timer.Stop()
		rc.timer = nil
	}
	if dropped := len(rc.pending); dropped > 0 {
		rc.metrics.IncRequestsDiscarded(ctx, dropped)
	}
	rc.pending = make(map[pendingKey]struct{})
	rc.logger.Info(ctx, "request coordinator stopped")
}

// PendingCount reports how many (device, property) pairs await the next
// flush.
func (rc *RequestCoordinator) PendingCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pending)
}

// RunnerState exposes the fetch runner's queue depth and in-flight count.
func (rc *RequestCoordinator) RunnerState() (queued, inFlight int) { return rc.runner.State() }

func (rc *RequestCoordinator) restartQuietTimerLocked() {
	rc.flushGen++
	gen := rc.flushGen
	if rc.timer != nil {
		rc.timer.Stop()
	}
	rc.timer = time.AfterFunc(rc.quietPeriod, func() { rc.flush(gen) })
}

// flush snapshots the pending set and submits one batched query per device.
// A flush whose generation was superseded by a later request does nothing;
// the restarted timer will cover the newer batch.
func (rc *RequestCoordinator) flush(gen uint64) {
	rc.mu.Lock()
	if gen != rc.flushGen || rc.stopped || len(rc.pending) == 0 {
		rc.mu.Unlock()
		return
	}

	window := rc.window
	byDevice := make(map[string][]string, len(rc.pending))
	for key := range rc.pending {
		byDevice[key.deviceID] = append(byDevice[key.deviceID], key.propertyID)
	}
	rc.pending = make(map[pendingKey]struct{})

	deviceIDs := make([]string, 0, len(byDevice))
	for deviceID := range byDevice {
		deviceIDs = append(deviceIDs, deviceID)
	}
	sort.Strings(deviceIDs)

	queries := make([]domain.AggregateQuery, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		propertyIDs := byDevice[deviceID]
		sort.Strings(propertyIDs)
		rc.fetchSeq++
		queries = append(queries, domain.NewAggregateQuery(deviceID, propertyIDs, window, rc.fetchSeq))
	}
	rc.mu.Unlock()

	ctx, span := rc.tracer.Start(context.Background(), "request_coordinator.flush",
		trace.WithAttributes(
			attribute.String("window_key", window.Key()),
			attribute.Int("device_count", len(queries)),
		))
	defer span.End()

	rc.metrics.ObserveFlushBatchSize(ctx, len(queries))
	rc.logger.Debug(ctx, "flushing batched aggregate queries",
		"window_key", window.Key(),
		"device_count", len(queries))

	for _, query := range queries {
		rc.submitFetch(ctx, query)
	}
}

// submitFetch hands a query to the runner. The synchronous part of the task
// only launches the fetch; the slot is held until the fetch goroutine calls
// done.
func (rc *RequestCoordinator) submitFetch(ctx context.Context, query domain.AggregateQuery) {
	rc.runner.Submit(ctx, func(done func()) {
		go rc.fetch(query, done)
	}, false)
}

// fetch performs one attempt of a query and releases the runner slot when
// the attempt settles. Failed attempts below the budget are re-submitted as
// new tasks after the retry delay; the last failure is recorded and
// broadcast instead.
func (rc *RequestCoordinator) fetch(query domain.AggregateQuery, done func()) {
	defer done()

	ctx, span := rc.tracer.Start(context.Background(), "request_coordinator.fetch_aggregates",
		trace.WithAttributes(
			attribute.String("query_id", query.ID().String()),
			attribute.String("device_id", query.DeviceID()),
			attribute.Int("property_count", len(query.PropertyIDs())),
			attribute.String("window_key", query.Window().Key()),
			attribute.Int("attempt", query.Attempt()),
		))
	defer span.End()

	start := rc.timeProvider.Now()
	aggs, err := rc.gateway.FetchAggregates(ctx, query)
	rc.metrics.ObserveFetchDuration(ctx, rc.timeProvider.Now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate fetch failed")
		rc.handleFetchFailure(ctx, query, err)
		return
	}

	span.AddEvent("aggregates_fetched")
	if err := rc.sink.Ingest(ctx, query, aggs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		rc.logger.Error(ctx, "failed to ingest fetched aggregates",
			"query_id", query.ID().String(),
			"device_id", query.DeviceID(),
			"error", err)
	}
}

func (rc *RequestCoordinator) handleFetchFailure(ctx context.Context, query domain.AggregateQuery, fetchErr error) {
	if query.Attempt() < rc.maxAttempts {
		rc.metrics.IncFetchRetries(ctx)
		rc.logger.Warn(ctx, "aggregate fetch failed, scheduling retry",
			"query_id", query.ID().String(),
			"device_id", query.DeviceID(),
			"attempt", query.Attempt(),
			"max_attempts", rc.maxAttempts,
			"retry_delay", rc.retryDelay.String(),
			"error", fetchErr)

		retry := query.NextAttempt()
		time.AfterFunc(rc.retryDelay, func() { rc.resubmit(retry) })
		return
	}

	rc.metrics.IncFetchesExhausted(ctx)
	rc.logger.Error(ctx, "aggregate fetch exhausted all attempts",
		"query_id", query.ID().String(),
		"device_id", query.DeviceID(),
		"window_key", query.Window().Key(),
		"attempts", query.Attempt(),
		"error", fetchErr)

	rc.failures.RecordFetchFailure(ctx, domain.FetchFailure{
		DeviceID:    query.DeviceID(),
		PropertyIDs: query.PropertyIDs(),
		Window:      query.Window(),
		Attempts:    query.Attempt(),
		Reason:      fetchErr.Error(),
		OccurredAt:  rc.timeProvider.Now().UTC(),
	})

	evt := domain.NewQueryFailedEvent(
		query.ID(),
		query.DeviceID(),
		query.PropertyIDs(),
		query.Window(),
		query.Attempt(),
		fetchErr.Error(),
	)
	if err := rc.publisher.PublishDomainEvent(ctx, evt, events.WithKey(query.DeviceID())); err != nil {
		rc.logger.Error(ctx, "failed to publish query failed event",
			"query_id", query.ID().String(),
			"error", err)
	}
}

// resubmit queues a retry attempt unless the coordinator stopped while the
// retry delay was pending.
func (rc *RequestCoordinator) resubmit(query domain.AggregateQuery) {
	rc.mu.Lock()
	stopped := rc.stopped
	rc.mu.Unlock()
	if stopped {
		return
	}
	rc.submitFetch(context.Background(), query)
}
