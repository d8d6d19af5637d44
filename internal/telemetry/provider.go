// Package telemetry wires OpenTelemetry into the binaries.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracerConfig names the service and the collector its spans go to.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	// SampleRatio is the share of new traces kept. Child spans follow their
	// parent's decision.
	SampleRatio float64
}

func (c TracerConfig) sampler() trace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return trace.ParentBased(trace.AlwaysSample())
	case c.SampleRatio <= 0:
		return trace.ParentBased(trace.NeverSample())
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(c.SampleRatio))
	}
}

// InitTracerProvider installs a global provider exporting over OTLP/gRPC
// with W3C trace context propagation. The returned func flushes pending
// spans and stops the exporter.
func InitTracerProvider(ctx context.Context, cfg TracerConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otlp endpoint for %s is empty", cfg.ServiceName)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithSampler(cfg.sampler()),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
