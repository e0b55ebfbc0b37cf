// Package config defines the relay service configuration: runner and fetch
// tuning, provider endpoints and their auth references, and the transports
// the daemon wires at start.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderType enumerates the supported provider gateway kinds.
type ProviderType string

const (
	ProviderTypeREST     ProviderType = "rest"
	ProviderTypePostgres ProviderType = "postgres"
)

// Duration wraps time.Duration so YAML configs can use human-readable values
// like "100ms" or "5m".
type Duration time.Duration

// UnmarshalYAML parses the scalar node as a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar value")
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AuthConfig represents an authentication configuration referenced by
// providers.
type AuthConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// RunnerConfig tunes the session task runner.
type RunnerConfig struct {
	// MaxConcurrent bounds how many tasks run at once.
	MaxConcurrent int `yaml:"max_concurrent"`
	// WatchdogTimeout is how long a task may run before it is logged as
	// presumed stuck.
	WatchdogTimeout Duration `yaml:"watchdog_timeout"`
}

// FetchConfig tunes the request coordinator's batching and retry behavior.
type FetchConfig struct {
	// QuietPeriod is how long the coordinator waits after the last request
	// before flushing the pending batch.
	QuietPeriod Duration `yaml:"quiet_period"`
	// MaxConcurrent bounds how many fetches run at once.
	MaxConcurrent int `yaml:"max_concurrent"`
	// RetryDelay is the pause before a failed query is re-submitted.
	RetryDelay Duration `yaml:"retry_delay"`
	// MaxAttempts is the total attempt budget per query, first try included.
	MaxAttempts int `yaml:"max_attempts"`
}

// KafkaConfig points the daemon at the broker carrying result events. When
// absent the daemon falls back to the in-process bus.
type KafkaConfig struct {
	Brokers               []string `yaml:"brokers"`
	AggregateResultsTopic string   `yaml:"aggregate_results_topic"`
	LiveValuesTopic       string   `yaml:"live_values_topic"`
	GroupID               string   `yaml:"group_id"`
	ClientID              string   `yaml:"client_id"`
}

// PostgresConfig carries the connection string postgres-backed providers
// read from.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ProviderConfig describes one telemetry provider devices can be bound to
// through their model.
type ProviderConfig struct {
	Type ProviderType `yaml:"type"`
	// AuthRef names an entry in the top-level auth table.
	AuthRef string `yaml:"auth_ref,omitempty"`

	// REST provider settings.
	BaseURL           string   `yaml:"base_url,omitempty"`
	Timeout           Duration `yaml:"timeout,omitempty"`
	RequestsPerSecond float64  `yaml:"requests_per_second,omitempty"`
	Burst             int      `yaml:"burst,omitempty"`
	MaxRetries        uint64   `yaml:"max_retries,omitempty"`
}

// Config represents the top-level relay configuration.
type Config struct {
	Runner      RunnerConfig              `yaml:"runner"`
	Fetch       FetchConfig               `yaml:"fetch"`
	Kafka       *KafkaConfig              `yaml:"kafka,omitempty"`
	Postgres    *PostgresConfig           `yaml:"postgres,omitempty"`
	Auth        map[string]AuthConfig     `yaml:"auth,omitempty"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	CatalogPath string                    `yaml:"catalog_path"`
}

// Tuning defaults. They match the behavior the coordinator and runner fall
// back to when constructed without options.
const (
	defaultRunnerConcurrency = 3
	defaultWatchdogTimeout   = Duration(300 * time.Second)
	defaultQuietPeriod       = Duration(100 * time.Millisecond)
	defaultFetchConcurrency  = 6
	defaultRetryDelay        = Duration(3 * time.Second)
	defaultMaxAttempts       = 4
)

// ApplyDefaults fills zero-valued tuning knobs with the service defaults.
func (c *Config) ApplyDefaults() {
	if c.Runner.MaxConcurrent <= 0 {
		c.Runner.MaxConcurrent = defaultRunnerConcurrency
	}
	if c.Runner.WatchdogTimeout <= 0 {
		c.Runner.WatchdogTimeout = defaultWatchdogTimeout
	}
	if c.Fetch.QuietPeriod <= 0 {
		c.Fetch.QuietPeriod = defaultQuietPeriod
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = defaultFetchConcurrency
	}
	if c.Fetch.RetryDelay <= 0 {
		c.Fetch.RetryDelay = defaultRetryDelay
	}
	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = defaultMaxAttempts
	}
}

// Validate rejects configurations the daemon could not start with.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case ProviderTypeREST:
			if p.BaseURL == "" {
				return fmt.Errorf("provider %q: base_url is required for rest providers", name)
			}
			if p.AuthRef != "" {
				if _, ok := c.Auth[p.AuthRef]; !ok {
					return fmt.Errorf("provider %q references unknown auth_ref %q", name, p.AuthRef)
				}
			}
		case ProviderTypePostgres:
			if c.Postgres == nil || c.Postgres.DSN == "" {
				return fmt.Errorf("provider %q: postgres providers require a postgres dsn", name)
			}
		default:
			return fmt.Errorf("provider %q: unsupported type %q", name, p.Type)
		}
	}

	if c.Kafka != nil {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka: at least one broker is required")
		}
		if c.Kafka.AggregateResultsTopic == "" || c.Kafka.LiveValuesTopic == "" {
			return fmt.Errorf("kafka: aggregate_results_topic and live_values_topic are required")
		}
	}
	return nil
}
