package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeWindow(t *testing.T) {
	tests := []struct {
		name       string
		start      int64
		end        int64
		resolution Resolution
		wantErr    bool
	}{
		{
			name:       "valid hour window",
			start:      1_700_000_000,
			end:        1_700_003_600,
			resolution: ResolutionHour,
		},
		{
			name:       "valid minute window",
			start:      0,
			end:        60,
			resolution: ResolutionMinute,
		},
		{
			name:       "end before start",
			start:      1_700_003_600,
			end:        1_700_000_000,
			resolution: ResolutionHour,
			wantErr:    true,
		},
		{
			name:       "end equals start",
			start:      1_700_000_000,
			end:        1_700_000_000,
			resolution: ResolutionHour,
			wantErr:    true,
		},
		{
			name:       "unknown resolution",
			start:      1_700_000_000,
			end:        1_700_003_600,
			resolution: Resolution("7m"),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewTimeWindow(tt.start, tt.end, tt.resolution)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.StartSecond())
			assert.Equal(t, tt.end, w.EndSecond())
			assert.Equal(t, tt.resolution, w.Resolution())
		})
	}
}

func TestTimeWindow_Key(t *testing.T) {
	w, err := NewTimeWindow(1_700_000_000, 1_700_003_600, ResolutionQuarterHour)
	require.NoError(t, err)
	assert.Equal(t, "1700000000/1700003600/15m", w.Key())
}

func TestTimeWindow_Equals(t *testing.T) {
	w1, err := NewTimeWindow(100, 200, ResolutionMinute)
	require.NoError(t, err)
	w2, err := NewTimeWindow(100, 200, ResolutionMinute)
	require.NoError(t, err)
	w3, err := NewTimeWindow(100, 200, ResolutionHour)
	require.NoError(t, err)
	w4, err := NewTimeWindow(100, 300, ResolutionMinute)
	require.NoError(t, err)

	assert.True(t, w1.Equals(w2))
	assert.Equal(t, w1.Key(), w2.Key())
	assert.False(t, w1.Equals(w3))
	assert.False(t, w1.Equals(w4))
}

func TestTimeWindow_IsZero(t *testing.T) {
	var zero TimeWindow
	assert.True(t, zero.IsZero())

	w, err := NewTimeWindow(100, 200, ResolutionMinute)
	require.NoError(t, err)
	assert.False(t, w.IsZero())
}

func TestResolution_BucketSeconds(t *testing.T) {
	assert.Equal(t, int64(60), ResolutionMinute.BucketSeconds())
	assert.Equal(t, int64(900), ResolutionQuarterHour.BucketSeconds())
	assert.Equal(t, int64(3600), ResolutionHour.BucketSeconds())
	assert.Equal(t, int64(86400), ResolutionDay.BucketSeconds())
	assert.Equal(t, int64(0), Resolution("2h").BucketSeconds())
	assert.False(t, Resolution("").IsValid())
}
