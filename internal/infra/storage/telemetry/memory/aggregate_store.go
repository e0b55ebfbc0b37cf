// Package memory provides the in-memory aggregate store backing the cache.
// Records live for the session only; nothing is persisted across restarts.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

var _ telemetry.AggregateStore = (*AggregateStore)(nil)

// AggregateStore holds per-device records guarded by a single mutex. Stored
// series are treated as immutable, so lookups hand out the stored pointers
// while record maps are only touched under the lock.
type AggregateStore struct {
	mu      sync.Mutex
	devices map[string]*telemetry.DeviceRecord

	// appliedSeq tracks the newest fetch sequence applied per slot so late
	// results of superseded queries cannot overwrite fresher data.
	appliedSeq map[string]uint64
	failures   map[string]telemetry.FetchFailure
}

// NewAggregateStore creates an empty in-memory aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		devices:    make(map[string]*telemetry.DeviceRecord),
		appliedSeq: make(map[string]uint64),
		failures:   make(map[string]telemetry.FetchFailure),
	}
}

// GetSeries returns the series cached for the slot, if any.
func (s *AggregateStore) GetSeries(ctx context.Context, deviceID, propertyID, windowKey string) (*telemetry.AggregateSeries, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	prop, ok := device.Property(propertyID)
	if !ok {
		return nil, false
	}
	return prop.Series(windowKey)
}

// ApplyAggregates merges a fetch result into the device's record. The merge
// is all-or-nothing: when any covered slot already holds data from a newer
// fetch sequence the whole result is rejected.
func (s *AggregateStore) ApplyAggregates(ctx context.Context, aggs telemetry.DeviceAggregates) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windowKey := aggs.Window().Key()
	propertyIDs := aggs.PropertyIDs()

	for _, propertyID := range propertyIDs {
		key := slotKey(aggs.DeviceID(), propertyID, windowKey)
		if applied, ok := s.appliedSeq[key]; ok && applied > aggs.FetchSeq() {
			return false, nil
		}
	}

	device, ok := s.devices[aggs.DeviceID()]
	if !ok {
		device = telemetry.NewDeviceRecord()
		s.devices[aggs.DeviceID()] = device
	}
	device.Merge(aggs.ToDeviceRecord())

	for _, propertyID := range propertyIDs {
		key := slotKey(aggs.DeviceID(), propertyID, windowKey)
		s.appliedSeq[key] = aggs.FetchSeq()
		delete(s.failures, key)
	}

	return true, nil
}

// UpdateCurrentValue overwrites the instantaneous reading of a property that
// already has a record. Slots the cache never saw are ignored.
func (s *AggregateStore) UpdateCurrentValue(ctx context.Context, deviceID, propertyID string, value telemetry.CurrentValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[deviceID]
	if !ok {
		return false
	}
	prop, ok := device.Property(propertyID)
	if !ok {
		return false
	}
	prop.SetCurrentValue(value)
	return true
}

// RecordFetchFailure stores the failure marker for every slot the exhausted
// query covered.
func (s *AggregateStore) RecordFetchFailure(ctx context.Context, failure telemetry.FetchFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windowKey := failure.Window.Key()
	for _, propertyID := range failure.PropertyIDs {
		s.failures[slotKey(failure.DeviceID, propertyID, windowKey)] = failure
	}
}

// FetchFailure returns the failure marker for a slot, if one is set.
func (s *AggregateStore) FetchFailure(ctx context.Context, deviceID, propertyID, windowKey string) (telemetry.FetchFailure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.failures[slotKey(deviceID, propertyID, windowKey)]
	return f, ok
}

func slotKey(deviceID, propertyID, windowKey string) string {
	return fmt.Sprintf("%s|%s|%s", deviceID, propertyID, windowKey)
}
