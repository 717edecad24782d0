package interceptors

import (
	"context"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/reqscope"
	"google.golang.org/grpc"
)

// ScopeUnary returns a unary server interceptor that binds a fresh request
// scope to every call, so repeated cache reads within one call share a
// single outcome.
func ScopeUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		return handler(contextx.WithRequestScope(ctx, reqscope.New()), req)
	}
}
