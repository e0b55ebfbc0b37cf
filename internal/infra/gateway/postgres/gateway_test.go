package postgres

import (
	"context"
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/internal/infra/storage"
)

func setupGatewayTest(t *testing.T) (context.Context, *Gateway, *pgxpool.Pool, func()) {
	t.Helper()

	pool, cleanup := storage.SetupTestContainer(t)
	gw := NewGateway(pool, storage.NoOpTracer())

	return context.Background(), gw, pool, cleanup
}

func testWindow(t *testing.T) telemetry.TimeWindow {
	t.Helper()
	w, err := telemetry.NewTimeWindow(1700000000, 1700003600, telemetry.ResolutionQuarterHour)
	require.NoError(t, err)
	return w
}

func seedReading(t *testing.T, ctx context.Context, pool *pgxpool.Pool, deviceID, propertyID string, at int64, value float64) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO sensor_readings (device_id, property_id, recorded_at, value)
		 VALUES ($1, $2, to_timestamp($3), $4)`,
		deviceID, propertyID, at, value)
	require.NoError(t, err)
}

func TestPGGateway_FetchAggregates(t *testing.T) {
	t.Parallel()

	ctx, gw, pool, cleanup := setupGatewayTest(t)
	defer cleanup()

	// Two readings in the first bucket, one in the third, none elsewhere.
	seedReading(t, ctx, pool, "dev-1", "temp", 1700000010, 10)
	seedReading(t, ctx, pool, "dev-1", "temp", 1700000100, 20)
	seedReading(t, ctx, pool, "dev-1", "temp", 1700001805, 30)

	query := telemetry.NewAggregateQuery("dev-1", []string{"temp"}, testWindow(t), 5)

	result, err := gw.FetchAggregates(ctx, query)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", result.DeviceID())
	assert.True(t, result.Window().Equals(query.Window()))
	assert.Equal(t, uint64(5), result.FetchSeq(), "result must carry the query's fetch sequence")

	s, ok := result.Series()["temp"]
	require.True(t, ok)
	assert.Equal(t, []int64{1700000000, 1700000900, 1700001800, 1700002700}, s.Timestamps())

	require.NotNil(t, s.Counts()[0])
	assert.Equal(t, 2.0, *s.Counts()[0])
	assert.Equal(t, 10.0, *s.Mins()[0])
	assert.Equal(t, 20.0, *s.Maxs()[0])
	assert.Equal(t, 15.0, *s.Avgs()[0])
	assert.Equal(t, 30.0, *s.Sums()[0])
	require.NotNil(t, s.StdDevs()[0])
	assert.InDelta(t, 7.0711, *s.StdDevs()[0], 0.001)

	assert.Nil(t, s.Counts()[1], "buckets without readings stay empty")

	require.NotNil(t, s.Counts()[2])
	assert.Equal(t, 1.0, *s.Counts()[2])
	assert.Nil(t, s.StdDevs()[2], "single-sample buckets have no sample deviation")

	avgRange, ok := s.RangeFor(telemetry.SeriesAvg)
	require.True(t, ok, "ranges are derived from the buckets")
	assert.Equal(t, telemetry.ValueRange{Min: 15, Max: 30}, avgRange)
}

func TestPGGateway_EmptyWindow(t *testing.T) {
	t.Parallel()

	ctx, gw, _, cleanup := setupGatewayTest(t)
	defer cleanup()

	query := telemetry.NewAggregateQuery("dev-1", []string{"temp", "power"}, testWindow(t), 1)

	result, err := gw.FetchAggregates(ctx, query)
	require.NoError(t, err)

	require.Len(t, result.Series(), 2, "every requested property gets a series")
	for _, propertyID := range []string{"temp", "power"} {
		s := result.Series()[propertyID]
		require.NotNil(t, s)
		assert.Equal(t, 4, s.Len())
		for i := 0; i < s.Len(); i++ {
			assert.Nil(t, s.Avgs()[i])
		}
	}
	assert.Empty(t, result.Currents())
}

func TestPGGateway_CurrentValues(t *testing.T) {
	t.Parallel()

	ctx, gw, pool, cleanup := setupGatewayTest(t)
	defer cleanup()

	seedReading(t, ctx, pool, "dev-1", "temp", 1700000010, 10)
	// A reading after the window end is still the newest instantaneous value.
	seedReading(t, ctx, pool, "dev-1", "temp", 1700009999, 99)

	query := telemetry.NewAggregateQuery("dev-1", []string{"temp"}, testWindow(t), 2)

	result, err := gw.FetchAggregates(ctx, query)
	require.NoError(t, err)

	cv, ok := result.Currents()["temp"]
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700009999, 0).UTC(), cv.Timestamp)
	assert.Equal(t, 99.0, cv.Value)

	// The aggregate series only covers the window.
	s := result.Series()["temp"]
	require.NotNil(t, s)
	require.NotNil(t, s.Counts()[0])
	assert.Equal(t, 1.0, *s.Counts()[0])
}

func TestPGGateway_IgnoresOtherDevices(t *testing.T) {
	t.Parallel()

	ctx, gw, pool, cleanup := setupGatewayTest(t)
	defer cleanup()

	seedReading(t, ctx, pool, "dev-1", "temp", 1700000010, 10)
	seedReading(t, ctx, pool, "dev-2", "temp", 1700000020, 1000)

	query := telemetry.NewAggregateQuery("dev-1", []string{"temp"}, testWindow(t), 3)

	result, err := gw.FetchAggregates(ctx, query)
	require.NoError(t, err)

	s := result.Series()["temp"]
	require.NotNil(t, s)
	require.NotNil(t, s.Maxs()[0])
	assert.Equal(t, 10.0, *s.Maxs()[0])

	cv, ok := result.Currents()["temp"]
	require.True(t, ok)
	assert.Equal(t, 10.0, cv.Value)
}
