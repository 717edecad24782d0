package tracing

import (
	"context"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"
)

// UnaryServerInterceptor opens a server span per call, continuing any trace
// context found in the incoming metadata. A nil cfg disables it.
func UnaryServerInterceptor(cfg *Config) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg == nil {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = cfg.propagators().Extract(ctx, mdCarrier(md.Copy()))
		ctx, span := cfg.tracer().Start(ctx, info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(rpcAttributes(info.FullMethod)...),
		)
		defer span.End()

		resp, err := handler(ctx, req)
		recordStatus(span, err)
		return resp, err
	}
}

// UnaryClientInterceptor opens a client span per call and injects its trace
// context into the outgoing metadata. A nil cfg disables it.
func UnaryClientInterceptor(cfg *Config) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if cfg == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		ctx, span := cfg.tracer().Start(ctx, method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(rpcAttributes(method)...),
		)
		defer span.End()

		md, _ := metadata.FromOutgoingContext(ctx)
		md = md.Copy()
		cfg.propagators().Inject(ctx, mdCarrier(md))
		err := invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, opts...)
		recordStatus(span, err)
		return err
	}
}

// mdCarrier adapts gRPC metadata to propagation.TextMapCarrier. gRPC keys
// are lower case.
type mdCarrier metadata.MD

func (c mdCarrier) Get(key string) string {
	if v := c[strings.ToLower(key)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c mdCarrier) Set(key, value string) {
	c[strings.ToLower(key)] = []string{value}
}

func (c mdCarrier) Keys() []string {
	return slices.Collect(maps.Keys(c))
}

// rpcAttributes describes "/pkg.Service/Method" with the rpc.* conventions.
func rpcAttributes(fullMethod string) []attribute.KeyValue {
	service, method, _ := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	return []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	}
}

func recordStatus(span trace.Span, err error) {
	st := grpcStatus.Convert(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, st.Message())
}
