// Package telemetry wires corefs's OpenTelemetry providers: a MeterProvider
// backed by the Prometheus exporter (so OTel instruments and the
// internal/metrics collectors share one /metrics endpoint) and a
// TracerProvider spanning path resolution and page-fault handling.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Providers holds the constructed OTel providers for the lifetime of a
// mounted filesystem.
type Providers struct {
	Meter  *metric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// Setup constructs a MeterProvider exporting via Prometheus and a
// TracerProvider writing spans to stdout (there being no external collector
// in scope here), installs them as the global providers, and returns them so
// Shutdown can be called on exit.
func Setup(ctx context.Context) (*Providers, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}
	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tracerProvider)

	return &Providers{Meter: meterProvider, Tracer: tracerProvider}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return p.Meter.Shutdown(ctx)
}

// Tracer returns the named tracer used to span path resolution and
// page-fault handling.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
