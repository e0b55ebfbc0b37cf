package telemetry

import (
	"fmt"

	"github.com/google/uuid"
)

// AggregateQuery is the unit of fetch work the request coordinator flushes:
// all outstanding properties of one device for one time window. The fetch
// sequence stamps when the query was flushed relative to others, letting the
// store reject results that arrive after newer data was already applied.
type AggregateQuery struct {
	id          uuid.UUID
	deviceID    string
	propertyIDs []string
	window      TimeWindow
	fetchSeq    uint64
	attempt     int
}

// NewAggregateQuery creates a first-attempt query for the device's pending
// properties.
func NewAggregateQuery(deviceID string, propertyIDs []string, window TimeWindow, fetchSeq uint64) AggregateQuery {
	return AggregateQuery{
		id:          uuid.New(),
		deviceID:    deviceID,
		propertyIDs: propertyIDs,
		window:      window,
		fetchSeq:    fetchSeq,
		attempt:     1,
	}
}

// ID returns the unique identifier of this query.
func (q AggregateQuery) ID() uuid.UUID { return q.id }

// DeviceID returns the device the query targets.
func (q AggregateQuery) DeviceID() string { return q.deviceID }

// PropertyIDs returns the properties the query covers.
func (q AggregateQuery) PropertyIDs() []string { return q.propertyIDs }

// Window returns the time window the query covers.
func (q AggregateQuery) Window() TimeWindow { return q.window }

// FetchSeq returns the monotonic flush sequence the query was stamped with.
func (q AggregateQuery) FetchSeq() uint64 { return q.fetchSeq }

// Attempt returns the 1-based attempt number of this query.
func (q AggregateQuery) Attempt() int { return q.attempt }

// NextAttempt returns a copy of the query with the attempt counter advanced.
// The query keeps its identity and fetch sequence across attempts.
func (q AggregateQuery) NextAttempt() AggregateQuery {
	q.attempt++
	return q
}

// String implements fmt.Stringer for logging.
func (q AggregateQuery) String() string {
	return fmt.Sprintf("query %s device=%s properties=%d window=%s attempt=%d",
		q.id, q.deviceID, len(q.propertyIDs), q.window.Key(), q.attempt)
}

// DeviceAggregates is the result of one executed query: the fetched series
// per property, optional instantaneous readings the provider returned along
// with them, and the fetch sequence of the originating query.
type DeviceAggregates struct {
	deviceID string
	window   TimeWindow
	fetchSeq uint64
	series   map[string]*AggregateSeries // keyed by property ID
	currents map[string]CurrentValue     // keyed by property ID
}

// NewDeviceAggregates builds a fetch result for the given query identity.
func NewDeviceAggregates(
	deviceID string,
	window TimeWindow,
	fetchSeq uint64,
	series map[string]*AggregateSeries,
	currents map[string]CurrentValue,
) DeviceAggregates {
	if series == nil {
		series = make(map[string]*AggregateSeries)
	}
	if currents == nil {
		currents = make(map[string]CurrentValue)
	}
	return DeviceAggregates{
		deviceID: deviceID,
		window:   window,
		fetchSeq: fetchSeq,
		series:   series,
		currents: currents,
	}
}

// DeviceID returns the device the aggregates belong to.
func (a DeviceAggregates) DeviceID() string { return a.deviceID }

// Window returns the time window the aggregates cover.
func (a DeviceAggregates) Window() TimeWindow { return a.window }

// FetchSeq returns the fetch sequence of the originating query.
func (a DeviceAggregates) FetchSeq() uint64 { return a.fetchSeq }

// Series returns the fetched series keyed by property ID.
func (a DeviceAggregates) Series() map[string]*AggregateSeries { return a.series }

// Currents returns the instantaneous readings keyed by property ID.
func (a DeviceAggregates) Currents() map[string]CurrentValue { return a.currents }

// PropertyIDs returns the property IDs the result carries series for.
func (a DeviceAggregates) PropertyIDs() []string {
	ids := make([]string, 0, len(a.series))
	for id := range a.series {
		ids = append(ids, id)
	}
	return ids
}

// ToDeviceRecord converts the fetch result into a device record suitable for
// merging into the cache.
func (a DeviceAggregates) ToDeviceRecord() *DeviceRecord {
	rec := NewDeviceRecord()
	key := a.window.Key()
	for propertyID, s := range a.series {
		rec.EnsureProperty(propertyID).PutSeries(key, s)
	}
	for propertyID, cv := range a.currents {
		rec.EnsureProperty(propertyID).SetCurrentValue(cv)
	}
	return rec
}
