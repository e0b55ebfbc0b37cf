package telemetry

import "context"

// ProviderGateway executes aggregate queries against whatever backend serves
// a device's telemetry. Implementations normalize provider responses into
// DeviceAggregates; transient transport failures surface as errors and are
// retried by the caller.
type ProviderGateway interface {
	// FetchAggregates runs one query and returns the fetched series per
	// property. The result must be stamped with the query's fetch sequence.
	FetchAggregates(ctx context.Context, query AggregateQuery) (DeviceAggregates, error)
}

// AggregateStore is the cache's storage port. It holds per-device records,
// merges incoming aggregates, and tracks fetch failures. Implementations
// must be safe for concurrent use.
type AggregateStore interface {
	// GetSeries returns the series cached for the slot, if any.
	GetSeries(ctx context.Context, deviceID, propertyID, windowKey string) (*AggregateSeries, bool)

	// ApplyAggregates merges a fetch result into the device's record using
	// last-write-wins per window key. Results whose fetch sequence is older
	// than one already applied to the same slots are rejected; the boolean
	// reports whether the merge was applied.
	ApplyAggregates(ctx context.Context, aggs DeviceAggregates) (bool, error)

	// UpdateCurrentValue overwrites the instantaneous reading of a property
	// that already has a record. Unknown slots are ignored; the boolean
	// reports whether an update happened.
	UpdateCurrentValue(ctx context.Context, deviceID, propertyID string, value CurrentValue) bool

	// RecordFetchFailure stores the failure marker for every property slot
	// the exhausted query covered.
	RecordFetchFailure(ctx context.Context, failure FetchFailure)

	// FetchFailure returns the failure marker for a slot, if one is set.
	FetchFailure(ctx context.Context, deviceID, propertyID, windowKey string) (FetchFailure, bool)
}

// CatalogLoader loads the device catalog at session start.
type CatalogLoader interface {
	// Load reads devices and models from the backing source and returns the
	// validated catalog.
	Load(ctx context.Context) (*Catalog, error)
}
