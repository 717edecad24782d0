// Package tracing wires OpenTelemetry into the service: a tracer provider
// built from configuration, gRPC interceptors, an HTTP middleware and a
// helper for internal spans. Every piece is a no-op when tracing is off.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Keksclan/linkSquirrel/tracing"

// Config selects the provider and propagators used by the transports. Nil
// fields fall back to the global OpenTelemetry settings.
type Config struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// Provider returns the configured tracer provider, or the global one when c
// or its provider is nil.
func (c *Config) Provider() trace.TracerProvider {
	if c == nil || c.TracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return c.TracerProvider
}

func (c *Config) tracer() trace.Tracer {
	if c.TracerProvider != nil {
		return c.TracerProvider.Tracer(instrumentationName)
	}
	return otel.Tracer(instrumentationName)
}

func (c *Config) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Start opens an internal span under the global tracer provider. Callers
// must End the returned span.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
