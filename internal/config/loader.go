package config

import (
	"context"
)

// Loader retrieves the relay configuration from some backing source.
// Implementations decide where the bytes come from; the file loader is the
// only one today, but the relay only ever depends on this interface so a
// config service or env-based loader can slot in later.
type Loader interface {
	// Load reads, parses, and validates the configuration.
	Load(ctx context.Context) (*Config, error)
}
