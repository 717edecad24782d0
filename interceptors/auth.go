package interceptors

import (
	"context"
	"errors"

	"github.com/Keksclan/linkSquirrel/auth"
	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/policy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// errUnauthenticated is allocated once to avoid per-request allocations on the hot path.
var (
	errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")
	errAdminOnly       = status.Error(codes.PermissionDenied, "admin access required")
)

// authError returns the original error if it is already a gRPC status error,
// otherwise wraps it as codes.Unauthenticated.
func authError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, auth.ErrExpiredToken) {
		return status.Error(codes.Unauthenticated, "token has expired")
	}
	return errUnauthenticated
}

// AuthUnary returns a unary server interceptor that calls fn and enforces the
// Access level of the resolved policy. Public calls proceed anonymously when
// credentials are missing or bad; Authenticated calls need an actor; Admin
// calls need an admin actor.
func AuthUnary(fn auth.AuthFunc, r *policy.Resolver) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		access := r.Lookup(info.FullMethod).Access
		md, _ := metadata.FromIncomingContext(ctx)

		newCtx, err := fn(ctx, info.FullMethod, md)
		if err != nil {
			if access == policy.Public {
				return handler(ctx, req)
			}
			return nil, authError(err)
		}
		if access == policy.Admin {
			if a, _ := contextx.ActorFromContext(newCtx); !a.Admin {
				return nil, errAdminOnly
			}
		}
		return handler(newCtx, req)
	}
}
