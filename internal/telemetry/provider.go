// Package telemetry wires OpenTelemetry tracing for the server.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects where spans are exported
type Config struct {
	Endpoint    string
	ServiceName string
}

// Provider is a tracer provider plus the function that flushes it
type Provider struct {
	trace.TracerProvider
	Shutdown func(context.Context) error
}

// Enabled reports whether spans are exported
func (p *Provider) Enabled() bool {
	_, ok := p.TracerProvider.(*sdktrace.TracerProvider)
	return ok
}

// Setup initialises tracing. With no endpoint it returns a no-op provider and
// leaves the globals untouched; otherwise it exports over OTLP/HTTP and
// registers the provider and W3C propagator globally.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	disabled := &Provider{
		TracerProvider: noop.NewTracerProvider(),
		Shutdown:       func(context.Context) error { return nil },
	}
	if cfg.Endpoint == "" {
		return disabled, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return disabled, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "puzzlegame"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return disabled, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{TracerProvider: tp, Shutdown: tp.Shutdown}, nil
}
