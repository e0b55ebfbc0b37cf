package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func mustSeries(t *testing.T, timestamps []int64, avgs []*float64) *AggregateSeries {
	t.Helper()
	n := len(timestamps)
	empty := make([]*float64, n)
	s, err := NewAggregateSeries(timestamps, empty, empty, empty, avgs, empty, empty, nil)
	require.NoError(t, err)
	return s
}

func TestPropertyRecord_CurrentValue(t *testing.T) {
	rec := NewPropertyRecord()

	_, ok := rec.CurrentValue()
	assert.False(t, ok)

	v := CurrentValue{Timestamp: time.Unix(1_700_000_000, 0), Value: 21.5}
	rec.SetCurrentValue(v)

	got, ok := rec.CurrentValue()
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestPropertyRecord_Merge_ReplacesSeriesPerWindowKey(t *testing.T) {
	older := mustSeries(t, []int64{100, 160}, []*float64{fp(1), fp(2)})
	newer := mustSeries(t, []int64{100, 160}, []*float64{fp(10), fp(20)})
	other := mustSeries(t, []int64{200, 260}, []*float64{fp(5), nil})

	a := NewPropertyRecord()
	a.PutSeries("100/220/1m", older)
	a.PutSeries("200/320/1m", other)

	b := NewPropertyRecord()
	b.PutSeries("100/220/1m", newer)

	a.Merge(b)

	got, ok := a.Series("100/220/1m")
	require.True(t, ok)
	assert.Same(t, newer, got, "incoming series should replace the stored one")

	kept, ok := a.Series("200/320/1m")
	require.True(t, ok)
	assert.Same(t, other, kept, "untouched window keys must survive the merge")
}

func TestPropertyRecord_Merge_CurrentValue(t *testing.T) {
	a := NewPropertyRecord()
	a.SetCurrentValue(CurrentValue{Timestamp: time.Unix(100, 0), Value: 1})

	// B without a current value leaves A's in place.
	a.Merge(NewPropertyRecord())
	got, ok := a.CurrentValue()
	require.True(t, ok)
	assert.Equal(t, float64(1), got.Value)

	// B with a current value replaces A's.
	b := NewPropertyRecord()
	b.SetCurrentValue(CurrentValue{Timestamp: time.Unix(200, 0), Value: 2})
	a.Merge(b)

	got, ok = a.CurrentValue()
	require.True(t, ok)
	assert.Equal(t, float64(2), got.Value)
	assert.Equal(t, int64(200), got.Timestamp.Unix())
}

func TestDeviceRecord_Merge(t *testing.T) {
	s1 := mustSeries(t, []int64{100}, []*float64{fp(1)})
	s2 := mustSeries(t, []int64{100}, []*float64{fp(2)})
	s3 := mustSeries(t, []int64{100}, []*float64{fp(3)})

	a := NewDeviceRecord()
	a.EnsureProperty("temp").PutSeries("w1", s1)

	b := NewDeviceRecord()
	b.EnsureProperty("temp").PutSeries("w1", s2)
	b.EnsureProperty("humidity").PutSeries("w1", s3)

	a.Merge(b)

	temp, ok := a.Property("temp")
	require.True(t, ok)
	got, ok := temp.Series("w1")
	require.True(t, ok)
	assert.Same(t, s2, got)

	humidity, ok := a.Property("humidity")
	require.True(t, ok, "unknown properties are inserted on merge")
	got, ok = humidity.Series("w1")
	require.True(t, ok)
	assert.Same(t, s3, got)

	assert.ElementsMatch(t, []string{"temp", "humidity"}, a.PropertyIDs())
}

func TestDeviceRecord_EnsureProperty(t *testing.T) {
	d := NewDeviceRecord()

	_, ok := d.Property("temp")
	assert.False(t, ok)

	first := d.EnsureProperty("temp")
	second := d.EnsureProperty("temp")
	assert.Same(t, first, second)
}
