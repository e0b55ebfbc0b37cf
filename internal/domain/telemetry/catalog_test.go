package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModels() []DeviceModel {
	return []DeviceModel{
		{
			ID:       "heatpump-v2",
			Name:     "Heat Pump v2",
			Provider: "rest",
			Properties: []PropertyDefinition{
				{ID: "supply_temp", Name: "Supply Temperature", Unit: "°C"},
				{ID: "power", Name: "Active Power", Unit: "W"},
			},
		},
	}
}

func TestNewCatalog(t *testing.T) {
	devices := []Device{
		{ID: "hp-1", Name: "Basement Heat Pump", ModelID: "heatpump-v2"},
	}

	c, err := NewCatalog(devices, testModels())
	require.NoError(t, err)

	d, ok := c.Device("hp-1")
	require.True(t, ok)
	assert.Equal(t, "heatpump-v2", d.ModelID)

	m, ok := c.ModelForDevice("hp-1")
	require.True(t, ok)
	assert.Equal(t, "rest", m.Provider)

	p, ok := c.PropertyDefinition("hp-1", "supply_temp")
	require.True(t, ok)
	assert.Equal(t, "°C", p.Unit)

	_, ok = c.PropertyDefinition("hp-1", "bogus")
	assert.False(t, ok)

	assert.Len(t, c.Devices(), 1)
	assert.Len(t, c.Models(), 1)
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		devices []Device
		models  []DeviceModel
	}{
		{
			name:    "unknown model reference",
			devices: []Device{{ID: "hp-1", ModelID: "missing"}},
			models:  testModels(),
		},
		{
			name:    "empty device ID",
			devices: []Device{{ID: "", ModelID: "heatpump-v2"}},
			models:  testModels(),
		},
		{
			name: "duplicate device",
			devices: []Device{
				{ID: "hp-1", ModelID: "heatpump-v2"},
				{ID: "hp-1", ModelID: "heatpump-v2"},
			},
			models: testModels(),
		},
		{
			name:    "duplicate model",
			devices: nil,
			models:  append(testModels(), testModels()...),
		},
		{
			name:    "empty model ID",
			devices: nil,
			models:  []DeviceModel{{ID: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.devices, tt.models)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_UnknownDevice(t *testing.T) {
	c, err := NewCatalog(nil, testModels())
	require.NoError(t, err)

	_, ok := c.Device("nope")
	assert.False(t, ok)
	_, ok = c.ModelForDevice("nope")
	assert.False(t, ok)
}
