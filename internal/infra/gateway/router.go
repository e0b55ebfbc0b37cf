// Package gateway routes aggregate queries to the provider bound to the
// queried device's model.
package gateway

import (
	"context"
	"fmt"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

var _ telemetry.ProviderGateway = (*Router)(nil)

// Router implements telemetry.ProviderGateway by dispatching each query to
// the gateway of the provider the device's model is bound to. The catalog is
// read-only after session start, so lookups need no locking.
type Router struct {
	catalog  *telemetry.Catalog
	gateways map[string]telemetry.ProviderGateway // keyed by provider name
}

// NewRouter builds a router over the given catalog. It fails fast when a
// model is bound to a provider no gateway was registered for.
func NewRouter(catalog *telemetry.Catalog, gateways map[string]telemetry.ProviderGateway) (*Router, error) {
	for _, m := range catalog.Models() {
		if _, ok := gateways[m.Provider]; !ok {
			return nil, fmt.Errorf("model %q is bound to provider %q but no gateway is registered for it", m.ID, m.Provider)
		}
	}
	return &Router{catalog: catalog, gateways: gateways}, nil
}

// FetchAggregates resolves the device's provider and forwards the query.
func (r *Router) FetchAggregates(ctx context.Context, query telemetry.AggregateQuery) (telemetry.DeviceAggregates, error) {
	model, ok := r.catalog.ModelForDevice(query.DeviceID())
	if !ok {
		return telemetry.DeviceAggregates{}, fmt.Errorf("device %q is not in the catalog", query.DeviceID())
	}

	gw, ok := r.gateways[model.Provider]
	if !ok {
		return telemetry.DeviceAggregates{}, fmt.Errorf("no gateway registered for provider %q", model.Provider)
	}
	return gw.FetchAggregates(ctx, query)
}
