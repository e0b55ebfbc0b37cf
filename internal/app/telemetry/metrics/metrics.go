package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/telemetry-armada/internal/infra/eventbus/kafka"
	"github.com/ahrav/telemetry-armada/internal/infra/runner"
)

// RelayMetrics defines metrics operations needed by the relay service.
type RelayMetrics interface {
	// Messaging metrics
	kafka.BrokerMetrics

	// Fetch runner metrics
	runner.Metrics

	// Request coordination metrics
	IncRequestsAccepted(ctx context.Context)
	IncRequestsDeduplicated(ctx context.Context)
	IncRequestsDiscarded(ctx context.Context, count int)
	ObserveFlushBatchSize(ctx context.Context, devices int)
	ObserveFetchDuration(ctx context.Context, d time.Duration)
	IncFetchRetries(ctx context.Context)
	IncFetchesExhausted(ctx context.Context)

	// Cache metrics
	IncCacheHits(ctx context.Context)
	IncCacheMisses(ctx context.Context)
	IncIngestsApplied(ctx context.Context)
	IncIngestsRejected(ctx context.Context)
}

// relayMetrics implements RelayMetrics.
type relayMetrics struct {
	// Messaging metrics
	messagesPublished metric.Int64Counter
	messagesConsumed  metric.Int64Counter
	publishErrors     metric.Int64Counter
	consumeErrors     metric.Int64Counter

	// Fetch runner metrics
	tasksSubmitted      metric.Int64Counter
	tasksCompleted      metric.Int64Counter
	watchdogExpirations metric.Int64Counter
	tasksDropped        metric.Int64Counter
	queueWait           metric.Float64Histogram

	// Request coordination metrics
	requestsAccepted     metric.Int64Counter
	requestsDeduplicated metric.Int64Counter
	requestsDiscarded    metric.Int64Counter
	flushBatchSize       metric.Int64Histogram
	fetchDuration        metric.Float64Histogram
	fetchRetries         metric.Int64Counter
	fetchesExhausted     metric.Int64Counter

	// Cache metrics
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	ingestsApplied  metric.Int64Counter
	ingestsRejected metric.Int64Counter
}

const namespace = "relay"

// NewRelayMetrics creates a new relay metrics instance.
func NewRelayMetrics(mp metric.MeterProvider) (*relayMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(relayMetrics)
	var err error

	// Initialize messaging metrics
	if m.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of messages published"),
	); err != nil {
		return nil, err
	}

	if m.messagesConsumed, err = meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of messages consumed"),
	); err != nil {
		return nil, err
	}

	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of publish errors"),
	); err != nil {
		return nil, err
	}

	if m.consumeErrors, err = meter.Int64Counter(
		"consume_errors_total",
		metric.WithDescription("Total number of consume errors"),
	); err != nil {
		return nil, err
	}

	// Initialize fetch runner metrics
	if m.tasksSubmitted, err = meter.Int64Counter(
		"fetch_tasks_submitted_total",
		metric.WithDescription("Total number of fetch tasks submitted to the runner"),
	); err != nil {
		return nil, err
	}

	if m.tasksCompleted, err = meter.Int64Counter(
		"fetch_tasks_completed_total",
		metric.WithDescription("Total number of fetch tasks whose completion callback fired"),
	); err != nil {
		return nil, err
	}

	if m.watchdogExpirations, err = meter.Int64Counter(
		"fetch_task_watchdog_expirations_total",
		metric.WithDescription("Total number of task slots reclaimed by the watchdog"),
	); err != nil {
		return nil, err
	}

	if m.tasksDropped, err = meter.Int64Counter(
		"fetch_tasks_dropped_total",
		metric.WithDescription("Total number of queued tasks dropped by a runner reset"),
	); err != nil {
		return nil, err
	}

	if m.queueWait, err = meter.Float64Histogram(
		"fetch_task_queue_wait_seconds",
		metric.WithDescription("Time tasks spend queued before a slot frees up"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Initialize request coordination metrics
	if m.requestsAccepted, err = meter.Int64Counter(
		"aggregate_requests_total",
		metric.WithDescription("Total number of aggregate requests accepted into the pending set"),
	); err != nil {
		return nil, err
	}

	if m.requestsDeduplicated, err = meter.Int64Counter(
		"aggregate_requests_deduplicated_total",
		metric.WithDescription("Total number of aggregate requests collapsed into an existing pending entry"),
	); err != nil {
		return nil, err
	}

	if m.requestsDiscarded, err = meter.Int64Counter(
		"aggregate_requests_discarded_total",
		metric.WithDescription("Total number of pending requests discarded on window switch or stop"),
	); err != nil {
		return nil, err
	}

	if m.flushBatchSize, err = meter.Int64Histogram(
		"aggregate_flush_batch_devices",
		metric.WithDescription("Number of per-device queries produced by each flush"),
	); err != nil {
		return nil, err
	}

	if m.fetchDuration, err = meter.Float64Histogram(
		"aggregate_fetch_duration_seconds",
		metric.WithDescription("Time taken by one aggregate fetch attempt"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.fetchRetries, err = meter.Int64Counter(
		"aggregate_fetch_retries_total",
		metric.WithDescription("Total number of fetch attempts re-submitted after a failure"),
	); err != nil {
		return nil, err
	}

	if m.fetchesExhausted, err = meter.Int64Counter(
		"aggregate_fetches_exhausted_total",
		metric.WithDescription("Total number of queries that failed all fetch attempts"),
	); err != nil {
		return nil, err
	}

	// Initialize cache metrics
	if m.cacheHits, err = meter.Int64Counter(
		"aggregate_cache_hits_total",
		metric.WithDescription("Total number of series lookups served from cache"),
	); err != nil {
		return nil, err
	}

	if m.cacheMisses, err = meter.Int64Counter(
		"aggregate_cache_misses_total",
		metric.WithDescription("Total number of series lookups that registered a fetch request"),
	); err != nil {
		return nil, err
	}

	if m.ingestsApplied, err = meter.Int64Counter(
		"aggregate_ingests_applied_total",
		metric.WithDescription("Total number of fetch results merged into the cache"),
	); err != nil {
		return nil, err
	}

	if m.ingestsRejected, err = meter.Int64Counter(
		"aggregate_ingests_rejected_total",
		metric.WithDescription("Total number of fetch results dropped as stale"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Fetch runner metrics implementations
func (m *relayMetrics) IncTasksSubmitted(ctx context.Context) {
	m.tasksSubmitted.Add(ctx, 1)
}

func (m *relayMetrics) IncTasksCompleted(ctx context.Context) {
	m.tasksCompleted.Add(ctx, 1)
}

func (m *relayMetrics) IncWatchdogExpirations(ctx context.Context) {
	m.watchdogExpirations.Add(ctx, 1)
}

func (m *relayMetrics) IncTasksDropped(ctx context.Context, count int) {
	m.tasksDropped.Add(ctx, int64(count))
}

func (m *relayMetrics) ObserveQueueWait(ctx context.Context, d time.Duration) {
	m.queueWait.Record(ctx, d.Seconds())
}

// Request coordination metrics implementations
func (m *relayMetrics) IncRequestsAccepted(ctx context.Context) {
	m.requestsAccepted.Add(ctx, 1)
}

func (m *relayMetrics) IncRequestsDeduplicated(ctx context.Context) {
	m.requestsDeduplicated.Add(ctx, 1)
}

func (m *relayMetrics) IncRequestsDiscarded(ctx context.Context, count int) {
	m.requestsDiscarded.Add(ctx, int64(count))
}

func (m *relayMetrics) ObserveFlushBatchSize(ctx context.Context, devices int) {
	m.flushBatchSize.Record(ctx, int64(devices))
}

func (m *relayMetrics) ObserveFetchDuration(ctx context.Context, d time.Duration) {
	m.fetchDuration.Record(ctx, d.Seconds())
}

func (m *relayMetrics) IncFetchRetries(ctx context.Context) {
	m.fetchRetries.Add(ctx, 1)
}

func (m *relayMetrics) IncFetchesExhausted(ctx context.Context) {
	m.fetchesExhausted.Add(ctx, 1)
}

// Cache metrics implementations
func (m *relayMetrics) IncCacheHits(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

func (m *relayMetrics) IncCacheMisses(ctx context.Context) {
	m.cacheMisses.Add(ctx, 1)
}

func (m *relayMetrics) IncIngestsApplied(ctx context.Context) {
	m.ingestsApplied.Add(ctx, 1)
}

func (m *relayMetrics) IncIngestsRejected(ctx context.Context) {
	m.ingestsRejected.Add(ctx, 1)
}

// Kafka BrokerMetrics implementations
func (m *relayMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *relayMetrics) IncMessageConsumed(ctx context.Context, topic string) {
	m.messagesConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *relayMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *relayMetrics) IncConsumeError(ctx context.Context, topic string) {
	m.consumeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
