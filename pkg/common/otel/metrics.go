package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// GetMeterProvider returns the global meter provider. InitTelemetry installs
// the OTLP-backed provider; before that this yields a no-op provider, so
// metric construction is always safe.
func GetMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}
