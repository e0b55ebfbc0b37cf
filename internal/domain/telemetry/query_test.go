package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAggregateQuery(t *testing.T) {
	w, err := NewTimeWindow(100, 200, ResolutionMinute)
	require.NoError(t, err)

	q := NewAggregateQuery("boiler-1", []string{"supply_temp", "return_temp"}, w, 7)

	assert.NotEqual(t, q.ID().String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "boiler-1", q.DeviceID())
	assert.Equal(t, []string{"supply_temp", "return_temp"}, q.PropertyIDs())
	assert.True(t, w.Equals(q.Window()))
	assert.Equal(t, uint64(7), q.FetchSeq())
	assert.Equal(t, 1, q.Attempt())
}

func TestAggregateQuery_NextAttempt(t *testing.T) {
	w, err := NewTimeWindow(100, 200, ResolutionMinute)
	require.NoError(t, err)

	q := NewAggregateQuery("boiler-1", []string{"supply_temp"}, w, 1)
	retry := q.NextAttempt()

	assert.Equal(t, 2, retry.Attempt())
	assert.Equal(t, 1, q.Attempt(), "the original query value is unchanged")
	assert.Equal(t, q.ID(), retry.ID(), "retries keep the query identity")
	assert.Equal(t, q.FetchSeq(), retry.FetchSeq())
}

func TestDeviceAggregates_ToDeviceRecord(t *testing.T) {
	w, err := NewTimeWindow(100, 220, ResolutionMinute)
	require.NoError(t, err)

	s := mustSeries(t, []int64{100, 160}, []*float64{fp(1), fp(2)})
	aggs := NewDeviceAggregates("boiler-1", w, 3,
		map[string]*AggregateSeries{"supply_temp": s},
		map[string]CurrentValue{"supply_temp": {Timestamp: time.Unix(220, 0), Value: 2.5}},
	)

	rec := aggs.ToDeviceRecord()

	prop, ok := rec.Property("supply_temp")
	require.True(t, ok)

	got, ok := prop.Series(w.Key())
	require.True(t, ok)
	assert.Same(t, s, got)

	cv, ok := prop.CurrentValue()
	require.True(t, ok)
	assert.Equal(t, 2.5, cv.Value)

	assert.ElementsMatch(t, []string{"supply_temp"}, aggs.PropertyIDs())
}
