package events

// EventType names a category of domain event. The bus routes on it: query
// completions, query failures, and live value updates each map to their
// own type.
type EventType string

// PublishOption adjusts PublishParams for a single publish call.
type PublishOption func(*PublishParams)

// PublishParams holds the transport-level knobs a publisher may set.
type PublishParams struct {
	// Key is the partition key. Events sharing a key keep their relative
	// order on partitioned transports.
	Key string
	// Headers ride alongside the payload as metadata.
	Headers map[string]string
}

// WithKey sets the partition key. The relay keys query outcomes by device
// so per-device ordering survives partitioning.
func WithKey(key string) PublishOption {
	return func(p *PublishParams) { p.Key = key }
}

// WithHeaders attaches metadata headers to the published event.
func WithHeaders(headers map[string]string) PublishOption {
	return func(p *PublishParams) { p.Headers = headers }
}
