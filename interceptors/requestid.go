package interceptors

import (
	"context"

	"github.com/Keksclan/linkSquirrel/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDKey is the metadata key carrying the request ID in both
// directions.
const RequestIDKey = "x-request-id"

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context, adopting the caller's when one is sent, and
// echoes it in the response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDKey); len(vals) > 0 {
				incoming = vals[0]
			}
		}
		ctx, id := contextx.EnsureRequestID(ctx, incoming)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))
		return handler(ctx, req)
	}
}
