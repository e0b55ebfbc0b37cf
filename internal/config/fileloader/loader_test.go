package fileloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/telemetry-armada/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoaderLoad(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
fetch:
  quiet_period: 250ms
  max_concurrent: 4
kafka:
  brokers: ["localhost:9092"]
  aggregate_results_topic: aggregate-results
  live_values_topic: live-values
  group_id: relay
  client_id: relay-1
auth:
  cloud-key:
    type: api_key
    config:
      key: s3cret
providers:
  cloud:
    type: rest
    base_url: https://telemetry.example.com
    auth_ref: cloud-key
catalog_path: catalog.yaml
`)

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.QuietPeriod.Std())
	assert.Equal(t, 4, cfg.Fetch.MaxConcurrent)
	assert.Equal(t, 4, cfg.Fetch.MaxAttempts, "unset knobs get defaults")
	assert.Equal(t, 3, cfg.Runner.MaxConcurrent)

	require.Contains(t, cfg.Providers, "cloud")
	assert.Equal(t, config.ProviderTypeREST, cfg.Providers["cloud"].Type)
	assert.Equal(t, "cloud-key", cfg.Providers["cloud"].AuthRef)

	require.NotNil(t, cfg.Kafka)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestFileLoaderRejectsInvalidConfig(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
providers:
  cloud:
    type: rest
catalog_path: catalog.yaml
`)

	_, err := NewFileLoader(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestFileLoaderMissingFile(t *testing.T) {
	_, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(context.Background())
	require.Error(t, err)
}

func TestCatalogLoaderLoad(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
models:
  - id: hp-300
    name: Heat Pump 300
    provider: cloud
    properties:
      - id: temp_supply
        name: Supply Temperature
        unit: "°C"
devices:
  - id: dev-1
    name: Basement Pump
    model: hp-300
`)

	catalog, err := NewCatalogLoader(path).Load(context.Background())
	require.NoError(t, err)

	device, ok := catalog.Device("dev-1")
	require.True(t, ok)
	assert.Equal(t, "hp-300", device.ModelID)

	model, ok := catalog.ModelForDevice("dev-1")
	require.True(t, ok)
	assert.Equal(t, "cloud", model.Provider)
	require.Len(t, model.Properties, 1)
}

func TestCatalogLoaderRejectsDanglingModelRef(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
devices:
  - id: dev-1
    model: missing
`)

	_, err := NewCatalogLoader(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid catalog")
}
