package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProviderConfig selects and tunes the span exporter.
type ProviderConfig struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter string
	// Endpoint is the OTLP/HTTP collector as host:port.
	Endpoint string
	// SampleRatio is the fraction of new root traces recorded.
	SampleRatio float64

	ServiceName    string
	ServiceVersion string

	// Writer receives stdout exports; os.Stdout when nil.
	Writer io.Writer
}

// Setup builds a tracer provider from cfg, installs it and the W3C
// propagators globally, and returns a Config for the transports together with
// a shutdown function. With Exporter "none" it returns a nil Config and a
// no-op shutdown.
func Setup(ctx context.Context, cfg ProviderConfig) (*Config, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", "none":
		return nil, noop, nil
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		e, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, noop, fmt.Errorf("tracing: stdout exporter: %w", err)
		}
		exp = e
	case "otlp":
		e, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, noop, fmt.Errorf("tracing: otlp exporter: %w", err)
		}
		exp = e
	default:
		return nil, noop, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, noop, fmt.Errorf("tracing: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	props := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(props)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return &Config{TracerProvider: tp, Propagators: props}, shutdown, nil
}
