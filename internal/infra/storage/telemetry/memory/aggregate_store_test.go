package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

func fp(v float64) *float64 { return &v }

func testWindow(t *testing.T) telemetry.TimeWindow {
	t.Helper()
	w, err := telemetry.NewTimeWindow(1700000000, 1700003600, telemetry.ResolutionQuarterHour)
	require.NoError(t, err)
	return w
}

func seriesWithAvg(t *testing.T, avg float64) *telemetry.AggregateSeries {
	t.Helper()
	empty := make([]*float64, 2)
	s, err := telemetry.NewAggregateSeries(
		[]int64{1700000000, 1700000900},
		empty, empty, empty, []*float64{fp(avg), fp(avg + 1)}, empty, empty, nil,
	)
	require.NoError(t, err)
	return s
}

func aggregatesFor(t *testing.T, deviceID string, seq uint64, series map[string]*telemetry.AggregateSeries) telemetry.DeviceAggregates {
	t.Helper()
	return telemetry.NewDeviceAggregates(deviceID, testWindow(t), seq, series, nil)
}

func TestAggregateStoreGetSeriesMiss(t *testing.T) {
	store := NewAggregateStore()

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", testWindow(t).Key())
	assert.False(t, ok)
	assert.Nil(t, series)
}

func TestAggregateStoreApplyThenGet(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)

	applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 1,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 20)}))
	require.NoError(t, err)
	require.True(t, applied)

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", window.Key())
	require.True(t, ok)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 20.0, *series.Avgs()[0])

	_, ok = store.GetSeries(context.Background(), "dev-1", "humidity", window.Key())
	assert.False(t, ok)
}

func TestAggregateStoreLastWriteWins(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)

	for seq, avg := range []float64{20, 30} {
		applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", uint64(seq+1),
			map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, avg)}))
		require.NoError(t, err)
		require.True(t, applied)
	}

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", window.Key())
	require.True(t, ok)
	assert.Equal(t, 30.0, *series.Avgs()[0], "newer fetch should replace the slot")
}

func TestAggregateStoreRejectsStaleSequence(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)

	applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 5,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 50)}))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 3,
		map[string]*telemetry.AggregateSeries{
			"temp":     seriesWithAvg(t, 30),
			"humidity": seriesWithAvg(t, 60),
		}))
	require.NoError(t, err)
	assert.False(t, applied, "stale fetch must not overwrite newer data")

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", window.Key())
	require.True(t, ok)
	assert.Equal(t, 50.0, *series.Avgs()[0])

	_, ok = store.GetSeries(context.Background(), "dev-1", "humidity", window.Key())
	assert.False(t, ok, "rejection covers the whole result")
}

func TestAggregateStoreReapplySameSequence(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)

	for _, avg := range []float64{20, 25} {
		applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 7,
			map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, avg)}))
		require.NoError(t, err)
		require.True(t, applied, "retries reuse the sequence and must still apply")
	}

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", window.Key())
	require.True(t, ok)
	assert.Equal(t, 25.0, *series.Avgs()[0])
}

func TestAggregateStoreWindowsAreIndependent(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)

	other, err := telemetry.NewTimeWindow(1700003600, 1700007200, telemetry.ResolutionQuarterHour)
	require.NoError(t, err)

	applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 1,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 20)}))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.ApplyAggregates(context.Background(), telemetry.NewDeviceAggregates("dev-1", other, 2,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 40)}, nil))
	require.NoError(t, err)
	require.True(t, applied)

	series, ok := store.GetSeries(context.Background(), "dev-1", "temp", window.Key())
	require.True(t, ok)
	assert.Equal(t, 20.0, *series.Avgs()[0])

	series, ok = store.GetSeries(context.Background(), "dev-1", "temp", other.Key())
	require.True(t, ok)
	assert.Equal(t, 40.0, *series.Avgs()[0])
}

func TestAggregateStoreUpdateCurrentValue(t *testing.T) {
	store := NewAggregateStore()
	value := telemetry.CurrentValue{Timestamp: time.Unix(1700000500, 0).UTC(), Value: 21.5}

	assert.False(t, store.UpdateCurrentValue(context.Background(), "dev-1", "temp", value),
		"unknown slots are ignored")

	applied, err := store.ApplyAggregates(context.Background(), aggregatesFor(t, "dev-1", 1,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 20)}))
	require.NoError(t, err)
	require.True(t, applied)

	assert.False(t, store.UpdateCurrentValue(context.Background(), "dev-1", "humidity", value))
	assert.True(t, store.UpdateCurrentValue(context.Background(), "dev-1", "temp", value))
}

func TestAggregateStoreFailureMarkers(t *testing.T) {
	store := NewAggregateStore()
	window := testWindow(t)
	ctx := context.Background()

	store.RecordFetchFailure(ctx, telemetry.FetchFailure{
		DeviceID:    "dev-1",
		PropertyIDs: []string{"temp", "humidity"},
		Window:      window,
		Attempts:    4,
		Reason:      "gateway timeout",
		OccurredAt:  time.Unix(1700000000, 0).UTC(),
	})

	failure, ok := store.FetchFailure(ctx, "dev-1", "temp", window.Key())
	require.True(t, ok)
	assert.Equal(t, 4, failure.Attempts)
	assert.Equal(t, "gateway timeout", failure.Reason)

	_, ok = store.FetchFailure(ctx, "dev-1", "humidity", window.Key())
	assert.True(t, ok)
	_, ok = store.FetchFailure(ctx, "dev-1", "pressure", window.Key())
	assert.False(t, ok)

	// A later successful fetch clears the markers it covers.
	applied, err := store.ApplyAggregates(ctx, aggregatesFor(t, "dev-1", 1,
		map[string]*telemetry.AggregateSeries{"temp": seriesWithAvg(t, 20)}))
	require.NoError(t, err)
	require.True(t, applied)

	_, ok = store.FetchFailure(ctx, "dev-1", "temp", window.Key())
	assert.False(t, ok)
	_, ok = store.FetchFailure(ctx, "dev-1", "humidity", window.Key())
	assert.True(t, ok, "uncovered slots keep their markers")
}
