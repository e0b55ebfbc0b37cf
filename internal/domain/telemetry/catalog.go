package telemetry

import "fmt"

// PropertyDefinition describes one measurable property of a device model,
// e.g. supply temperature or active power.
type PropertyDefinition struct {
	ID   string
	Name string
	Unit string
}

// DeviceModel groups the property definitions shared by all devices of one
// type and names the provider that serves their telemetry.
type DeviceModel struct {
	ID         string
	Name       string
	Provider   string
	Properties []PropertyDefinition
}

// Device is a single sensor unit bound to a model.
type Device struct {
	ID      string
	Name    string
	ModelID string
	Labels  map[string]string
}

// Catalog resolves devices and their models. It is loaded once at session
// start and read-only afterwards.
type Catalog struct {
	devices map[string]Device
	models  map[string]DeviceModel
}

// NewCatalog builds a catalog and validates that every device references a
// known model.
func NewCatalog(devices []Device, models []DeviceModel) (*Catalog, error) {
	c := &Catalog{
		devices: make(map[string]Device, len(devices)),
		models:  make(map[string]DeviceModel, len(models)),
	}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("device model with empty ID")
		}
		if _, dup := c.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate device model %q", m.ID)
		}
		c.models[m.ID] = m
	}
	for _, d := range devices {
		if d.ID == "" {
			return nil, fmt.Errorf("device with empty ID")
		}
		if _, dup := c.devices[d.ID]; dup {
			return nil, fmt.Errorf("duplicate device %q", d.ID)
		}
		if _, ok := c.models[d.ModelID]; !ok {
			return nil, fmt.Errorf("device %q references unknown model %q", d.ID, d.ModelID)
		}
		c.devices[d.ID] = d
	}
	return c, nil
}

// Device returns the device with the given ID.
func (c *Catalog) Device(id string) (Device, bool) {
	d, ok := c.devices[id]
	return d, ok
}

// Model returns the device model with the given ID.
func (c *Catalog) Model(id string) (DeviceModel, bool) {
	m, ok := c.models[id]
	return m, ok
}

// ModelForDevice resolves the model of the given device.
func (c *Catalog) ModelForDevice(deviceID string) (DeviceModel, bool) {
	d, ok := c.devices[deviceID]
	if !ok {
		return DeviceModel{}, false
	}
	return c.Model(d.ModelID)
}

// PropertyDefinition resolves a property definition through the device's
// model.
func (c *Catalog) PropertyDefinition(deviceID, propertyID string) (PropertyDefinition, bool) {
	m, ok := c.ModelForDevice(deviceID)
	if !ok {
		return PropertyDefinition{}, false
	}
	for _, p := range m.Properties {
		if p.ID == propertyID {
			return p, true
		}
	}
	return PropertyDefinition{}, false
}

// Devices returns all devices in the catalog.
func (c *Catalog) Devices() []Device {
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	return out
}

// Models returns all device models in the catalog.
func (c *Catalog) Models() []DeviceModel {
	out := make([]DeviceModel, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	return out
}
