package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records controller operation timings through OpenTelemetry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

// New installs a meter provider backed by the Prometheus exporter as the
// global provider.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o := NewWithProvider(provider, serviceName)
	o.meterProvider = provider
	return o
}

// NewWithProvider builds instruments on an existing provider. Shutdown is
// left to the provider's owner.
func NewWithProvider(provider otelmetric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"session.operations",
		otelmetric.WithDescription("Number of session operations by name and status"),
	)

	opDuration, _ := meter.Float64Histogram(
		"session.operation.duration",
		otelmetric.WithDescription("Session operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meter:      meter,
		opCounter:  opCounter,
		opDuration: opDuration,
	}
}

// RecordOperation counts one finished operation and records its duration.
// A nil receiver is a no-op.
func (o *Observability) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
