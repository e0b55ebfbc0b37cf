// Package telemetry defines the domain model for time-windowed sensor
// aggregates: the windows views look at, the bucketed series providers
// return, and the per-device records the cache accumulates.
package telemetry

import (
	"fmt"
	"strconv"
	"time"
)

// Resolution identifies the bucket width aggregates are computed at.
type Resolution string

// Supported aggregate resolutions.
const (
	ResolutionMinute      Resolution = "1m"
	ResolutionQuarterHour Resolution = "15m"
	ResolutionHour        Resolution = "1h"
	ResolutionDay         Resolution = "1d"
)

// BucketSeconds returns the width of one aggregate bucket in seconds,
// or 0 for an unknown resolution.
func (r Resolution) BucketSeconds() int64 {
	switch r {
	case ResolutionMinute:
		return 60
	case ResolutionQuarterHour:
		return 15 * 60
	case ResolutionHour:
		return 60 * 60
	case ResolutionDay:
		return 24 * 60 * 60
	}
	return 0
}

// IsValid reports whether the resolution is one of the supported widths.
func (r Resolution) IsValid() bool { return r.BucketSeconds() > 0 }

// TimeWindow identifies the time span and resolution a view is looking at.
// It is the cache index for aggregate series and the unit of request
// batching: all pending requests belong to exactly one active window.
type TimeWindow struct {
	startSecond int64
	endSecond   int64
	resolution  Resolution
}

// NewTimeWindow constructs a validated time window. The bounds are epoch
// seconds with endSecond exclusive.
func NewTimeWindow(startSecond, endSecond int64, resolution Resolution) (TimeWindow, error) {
	if endSecond <= startSecond {
		return TimeWindow{}, fmt.Errorf("time window end %d must be after start %d", endSecond, startSecond)
	}
	if !resolution.IsValid() {
		return TimeWindow{}, fmt.Errorf("unsupported resolution %q", resolution)
	}
	return TimeWindow{startSecond: startSecond, endSecond: endSecond, resolution: resolution}, nil
}

// StartSecond returns the inclusive window start in epoch seconds.
func (w TimeWindow) StartSecond() int64 { return w.startSecond }

// EndSecond returns the exclusive window end in epoch seconds.
func (w TimeWindow) EndSecond() int64 { return w.endSecond }

// Resolution returns the bucket width of the window.
func (w TimeWindow) Resolution() Resolution { return w.resolution }

// Start returns the window start as a time.Time in UTC.
func (w TimeWindow) Start() time.Time { return time.Unix(w.startSecond, 0).UTC() }

// End returns the window end as a time.Time in UTC.
func (w TimeWindow) End() time.Time { return time.Unix(w.endSecond, 0).UTC() }

// Key returns the canonical identity of the window. Two windows address the
// same cache slot exactly when their keys are equal.
func (w TimeWindow) Key() string {
	return strconv.FormatInt(w.startSecond, 10) + "/" + strconv.FormatInt(w.endSecond, 10) + "/" + string(w.resolution)
}

// Equals reports whether both windows have the same canonical key.
func (w TimeWindow) Equals(other TimeWindow) bool { return w == other }

// IsZero reports whether the window is the zero value, i.e. no window has
// been selected yet.
func (w TimeWindow) IsZero() bool { return w == TimeWindow{} }

// String implements fmt.Stringer for logging.
func (w TimeWindow) String() string { return w.Key() }
