package telemetry

import "time"

// CurrentValue is the latest instantaneous reading reported for a property,
// independent of any aggregate window.
type CurrentValue struct {
	Timestamp time.Time
	Value     float64
}

// PropertyRecord accumulates everything the cache knows about one property
// of one device: its latest instantaneous value and one aggregate series per
// window key.
type PropertyRecord struct {
	current *CurrentValue
	series  map[string]*AggregateSeries // keyed by TimeWindow.Key()
}

// NewPropertyRecord creates an empty property record.
func NewPropertyRecord() *PropertyRecord {
	return &PropertyRecord{series: make(map[string]*AggregateSeries)}
}

// CurrentValue returns the latest instantaneous reading, if one was recorded.
func (r *PropertyRecord) CurrentValue() (CurrentValue, bool) {
	if r.current == nil {
		return CurrentValue{}, false
	}
	return *r.current, true
}

// SetCurrentValue overwrites the latest instantaneous reading.
func (r *PropertyRecord) SetCurrentValue(v CurrentValue) {
	cv := v
	r.current = &cv
}

// Series returns the aggregate series stored under the window key.
func (r *PropertyRecord) Series(windowKey string) (*AggregateSeries, bool) {
	s, ok := r.series[windowKey]
	return s, ok
}

// PutSeries stores the series under the window key, replacing any series
// already held for that key.
func (r *PropertyRecord) PutSeries(windowKey string, s *AggregateSeries) {
	r.series[windowKey] = s
}

// WindowKeys returns the keys of all windows this record holds series for.
func (r *PropertyRecord) WindowKeys() []string {
	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	return keys
}

// Merge folds other into r. Other's current value, when present, replaces
// r's; each of other's series entries replaces the entry under the same
// window key. Window keys only r holds are untouched.
func (r *PropertyRecord) Merge(other *PropertyRecord) {
	if other == nil {
		return
	}
	if other.current != nil {
		r.SetCurrentValue(*other.current)
	}
	for key, s := range other.series {
		r.series[key] = s
	}
}

// DeviceRecord groups the property records of one device.
type DeviceRecord struct {
	properties map[string]*PropertyRecord
}

// NewDeviceRecord creates an empty device record.
func NewDeviceRecord() *DeviceRecord {
	return &DeviceRecord{properties: make(map[string]*PropertyRecord)}
}

// Property returns the record for the given property ID.
func (d *DeviceRecord) Property(propertyID string) (*PropertyRecord, bool) {
	r, ok := d.properties[propertyID]
	return r, ok
}

// EnsureProperty returns the record for the property ID, creating an empty
// one when the device has not reported that property yet.
func (d *DeviceRecord) EnsureProperty(propertyID string) *PropertyRecord {
	if r, ok := d.properties[propertyID]; ok {
		return r
	}
	r := NewPropertyRecord()
	d.properties[propertyID] = r
	return r
}

// PropertyIDs returns the IDs of all properties the record holds data for.
func (d *DeviceRecord) PropertyIDs() []string {
	ids := make([]string, 0, len(d.properties))
	for id := range d.properties {
		ids = append(ids, id)
	}
	return ids
}

// Merge folds other into d property by property: known properties merge per
// PropertyRecord.Merge, unknown properties are inserted.
func (d *DeviceRecord) Merge(other *DeviceRecord) {
	if other == nil {
		return
	}
	for propertyID, rec := range other.properties {
		if existing, ok := d.properties[propertyID]; ok {
			existing.Merge(rec)
			continue
		}
		d.properties[propertyID] = rec
	}
}
