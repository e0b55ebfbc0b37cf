package config

import (
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

// CatalogFile is the YAML schema of the device catalog: the models devices
// are instances of, the provider each model's telemetry comes from, and the
// devices themselves.
type CatalogFile struct {
	Models  []ModelSpec  `yaml:"models"`
	Devices []DeviceSpec `yaml:"devices"`
}

// ModelSpec describes one device model and its measurable properties.
type ModelSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Provider names an entry in the relay config's providers table.
	Provider   string         `yaml:"provider"`
	Properties []PropertySpec `yaml:"properties"`
}

// PropertySpec describes one measurable property of a model.
type PropertySpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Unit string `yaml:"unit,omitempty"`
}

// DeviceSpec describes one sensor unit bound to a model.
type DeviceSpec struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	ModelID string            `yaml:"model"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

// ToCatalog converts the file schema into the validated domain catalog.
func (f *CatalogFile) ToCatalog() (*telemetry.Catalog, error) {
	models := make([]telemetry.DeviceModel, 0, len(f.Models))
	for _, m := range f.Models {
		properties := make([]telemetry.PropertyDefinition, 0, len(m.Properties))
		for _, p := range m.Properties {
			properties = append(properties, telemetry.PropertyDefinition{
				ID:   p.ID,
				Name: p.Name,
				Unit: p.Unit,
			})
		}
		models = append(models, telemetry.DeviceModel{
			ID:         m.ID,
			Name:       m.Name,
			Provider:   m.Provider,
			Properties: properties,
		})
	}

	devices := make([]telemetry.Device, 0, len(f.Devices))
	for _, d := range f.Devices {
		devices = append(devices, telemetry.Device{
			ID:      d.ID,
			Name:    d.Name,
			ModelID: d.ModelID,
			Labels:  d.Labels,
		})
	}

	return telemetry.NewCatalog(devices, models)
}
