package telemetry

import "fmt"

// Names of the statistic series carried by an AggregateSeries. Used as keys
// in the value-range table.
const (
	SeriesCount  = "count"
	SeriesMin    = "min"
	SeriesMax    = "max"
	SeriesAvg    = "avg"
	SeriesSum    = "sum"
	SeriesStdDev = "stddev"
)

// ValueRange captures the observed minimum and maximum of one statistic
// series across a window. Views use it to scale axes without walking the
// buckets themselves.
type ValueRange struct {
	Min float64
	Max float64
}

// AggregateSeries holds the bucketed aggregate values for one property of
// one device over one time window. All statistic slices are aligned with the
// timestamp slice; a nil entry marks an empty bucket, which is distinct from
// a bucket whose value is zero. Instances are treated as immutable once
// constructed.
type AggregateSeries struct {
	timestamps []int64
	counts     []*float64
	mins       []*float64
	maxs       []*float64
	avgs       []*float64
	sums       []*float64
	stdDevs    []*float64

	ranges map[string]ValueRange
}

// NewAggregateSeries constructs a series after verifying every statistic
// slice is aligned with the timestamps.
func NewAggregateSeries(
	timestamps []int64,
	counts, mins, maxs, avgs, sums, stdDevs []*float64,
	ranges map[string]ValueRange,
) (*AggregateSeries, error) {
	n := len(timestamps)
	for name, s := range map[string][]*float64{
		SeriesCount:  counts,
		SeriesMin:    mins,
		SeriesMax:    maxs,
		SeriesAvg:    avgs,
		SeriesSum:    sums,
		SeriesStdDev: stdDevs,
	} {
		if len(s) != n {
			return nil, fmt.Errorf("series %s has %d buckets, want %d", name, len(s), n)
		}
	}

	if ranges == nil {
		ranges = make(map[string]ValueRange)
	}

	return &AggregateSeries{
		timestamps: timestamps,
		counts:     counts,
		mins:       mins,
		maxs:       maxs,
		avgs:       avgs,
		sums:       sums,
		stdDevs:    stdDevs,
		ranges:     ranges,
	}, nil
}

// Len returns the number of buckets in the series.
func (s *AggregateSeries) Len() int { return len(s.timestamps) }

// Timestamps returns the bucket start times in epoch seconds.
func (s *AggregateSeries) Timestamps() []int64 { return s.timestamps }

// Counts returns the per-bucket sample counts.
func (s *AggregateSeries) Counts() []*float64 { return s.counts }

// Mins returns the per-bucket minimum values.
func (s *AggregateSeries) Mins() []*float64 { return s.mins }

// Maxs returns the per-bucket maximum values.
func (s *AggregateSeries) Maxs() []*float64 { return s.maxs }

// Avgs returns the per-bucket mean values.
func (s *AggregateSeries) Avgs() []*float64 { return s.avgs }

// Sums returns the per-bucket sums.
func (s *AggregateSeries) Sums() []*float64 { return s.sums }

// StdDevs returns the per-bucket standard deviations.
func (s *AggregateSeries) StdDevs() []*float64 { return s.stdDevs }

// Ranges returns the observed value range per statistic series.
func (s *AggregateSeries) Ranges() map[string]ValueRange { return s.ranges }

// WithRanges returns a copy of the series carrying the given value-range
// table. The receiver is left untouched.
func (s *AggregateSeries) WithRanges(ranges map[string]ValueRange) *AggregateSeries {
	out := *s
	if ranges == nil {
		ranges = make(map[string]ValueRange)
	}
	out.ranges = ranges
	return &out
}

// RangeFor returns the observed value range of the named statistic series.
func (s *AggregateSeries) RangeFor(name string) (ValueRange, bool) {
	r, ok := s.ranges[name]
	return r, ok
}

// ComputeRanges derives the value-range table from the statistic slices,
// ignoring empty buckets. Gateways call this when the provider does not
// supply ranges itself.
func ComputeRanges(series *AggregateSeries) map[string]ValueRange {
	out := make(map[string]ValueRange)
	for name, s := range map[string][]*float64{
		SeriesCount:  series.counts,
		SeriesMin:    series.mins,
		SeriesMax:    series.maxs,
		SeriesAvg:    series.avgs,
		SeriesSum:    series.sums,
		SeriesStdDev: series.stdDevs,
	} {
		var (
			r     ValueRange
			found bool
		)
		for _, v := range s {
			if v == nil {
				continue
			}
			if !found {
				r = ValueRange{Min: *v, Max: *v}
				found = true
				continue
			}
			if *v < r.Min {
				r.Min = *v
			}
			if *v > r.Max {
				r.Max = *v
			}
		}
		if found {
			out[name] = r
		}
	}
	return out
}
