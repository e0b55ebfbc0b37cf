// Package postgres implements the provider gateway against a raw readings
// table. Local and dev providers write individual sensor readings into
// PostgreSQL; the gateway buckets them by the query's resolution at read
// time, so no pre-aggregation job is needed.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/internal/infra/storage"
)

var _ telemetry.ProviderGateway = (*Gateway)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

// aggregateSeriesQuery buckets readings of the requested properties into
// fixed-width buckets anchored at the window start. Integer division floors
// because the WHERE clause guarantees recorded_at >= window start.
const aggregateSeriesQuery = `
SELECT
    property_id,
    ((extract(epoch FROM recorded_at)::bigint - $3) / $5) * $5 + $3 AS bucket_start,
    count(value)::float8,
    min(value),
    max(value),
    avg(value),
    sum(value),
    stddev_samp(value)
FROM sensor_readings
WHERE device_id = $1
  AND property_id = ANY($2)
  AND recorded_at >= to_timestamp($3)
  AND recorded_at < to_timestamp($4)
GROUP BY property_id, bucket_start
ORDER BY property_id, bucket_start`

// currentValuesQuery returns the newest reading per property regardless of
// the query window, matching the domain's notion of an instantaneous value.
const currentValuesQuery = `
SELECT DISTINCT ON (property_id) property_id, recorded_at, value
FROM sensor_readings
WHERE device_id = $1
  AND property_id = ANY($2)
ORDER BY property_id, recorded_at DESC`

// Gateway serves aggregate queries from the sensor_readings table. It
// implements telemetry.ProviderGateway.
type Gateway struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewGateway creates a PostgreSQL-backed provider gateway using the provided
// connection pool.
func NewGateway(pool *pgxpool.Pool, tracer trace.Tracer) *Gateway {
	return &Gateway{pool: pool, tracer: tracer}
}

// FetchAggregates buckets the device's readings for the query window and
// returns them stamped with the query's fetch sequence. Every requested
// property gets a series covering the full window grid; buckets without
// readings stay empty.
func (g *Gateway) FetchAggregates(ctx context.Context, query telemetry.AggregateQuery) (telemetry.DeviceAggregates, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("device_id", query.DeviceID()),
		attribute.Int("property_count", len(query.PropertyIDs())),
		attribute.String("window", query.Window().Key()),
		attribute.Int64("fetch_seq", int64(query.FetchSeq())),
	)

	var result telemetry.DeviceAggregates
	err := storage.ExecuteAndTrace(ctx, g.tracer, "postgres.fetch_aggregates", dbAttrs, func(ctx context.Context) error {
		series, err := g.querySeries(ctx, query)
		if err != nil {
			return err
		}

		currents, err := g.queryCurrents(ctx, query)
		if err != nil {
			return err
		}

		result = telemetry.NewDeviceAggregates(query.DeviceID(), query.Window(), query.FetchSeq(), series, currents)
		return nil
	})
	return result, err
}

// statColumns accumulates the bucketed statistics of one property while rows
// stream in.
type statColumns struct {
	counts  []*float64
	mins    []*float64
	maxs    []*float64
	avgs    []*float64
	sums    []*float64
	stdDevs []*float64
}

func newStatColumns(n int) *statColumns {
	return &statColumns{
		counts:  make([]*float64, n),
		mins:    make([]*float64, n),
		maxs:    make([]*float64, n),
		avgs:    make([]*float64, n),
		sums:    make([]*float64, n),
		stdDevs: make([]*float64, n),
	}
}

func (g *Gateway) querySeries(ctx context.Context, query telemetry.AggregateQuery) (map[string]*telemetry.AggregateSeries, error) {
	w := query.Window()
	bucket := w.Resolution().BucketSeconds()
	numBuckets := int((w.EndSecond() - w.StartSecond() + bucket - 1) / bucket)

	timestamps := make([]int64, numBuckets)
	for i := range timestamps {
		timestamps[i] = w.StartSecond() + int64(i)*bucket
	}

	byProperty := make(map[string]*statColumns, len(query.PropertyIDs()))
	for _, id := range query.PropertyIDs() {
		byProperty[id] = newStatColumns(numBuckets)
	}

	rows, err := g.pool.Query(ctx, aggregateSeriesQuery,
		query.DeviceID(), query.PropertyIDs(), w.StartSecond(), w.EndSecond(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			propertyID             string
			bucketStart            int64
			count, mn, mx, avg, sm float64
			stdDev                 *float64
		)
		if err := rows.Scan(&propertyID, &bucketStart, &count, &mn, &mx, &avg, &sm, &stdDev); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}

		cols, ok := byProperty[propertyID]
		if !ok {
			continue
		}
		i := int((bucketStart - w.StartSecond()) / bucket)
		if i < 0 || i >= numBuckets {
			continue
		}

		cols.counts[i] = &count
		cols.mins[i] = &mn
		cols.maxs[i] = &mx
		cols.avgs[i] = &avg
		cols.sums[i] = &sm
		cols.stdDevs[i] = stdDev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregate rows: %w", err)
	}

	series := make(map[string]*telemetry.AggregateSeries, len(byProperty))
	for propertyID, cols := range byProperty {
		s, err := telemetry.NewAggregateSeries(
			timestamps, cols.counts, cols.mins, cols.maxs, cols.avgs, cols.sums, cols.stdDevs, nil)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", propertyID, err)
		}
		series[propertyID] = s.WithRanges(telemetry.ComputeRanges(s))
	}
	return series, nil
}

func (g *Gateway) queryCurrents(ctx context.Context, query telemetry.AggregateQuery) (map[string]telemetry.CurrentValue, error) {
	rows, err := g.pool.Query(ctx, currentValuesQuery, query.DeviceID(), query.PropertyIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to query current values: %w", err)
	}
	defer rows.Close()

	currents := make(map[string]telemetry.CurrentValue)
	for rows.Next() {
		var (
			propertyID string
			cv         telemetry.CurrentValue
		)
		if err := rows.Scan(&propertyID, &cv.Timestamp, &cv.Value); err != nil {
			return nil, fmt.Errorf("failed to scan current value row: %w", err)
		}
		cv.Timestamp = cv.Timestamp.UTC()
		currents[propertyID] = cv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read current value rows: %w", err)
	}
	return currents, nil
}
