package core

import "google.golang.org/grpc"

// BuildServerOptions turns the sorted interceptors and any extra options into
// the grpc.ServerOption list passed to grpc.NewServer.
func BuildServerOptions(unary []grpc.UnaryServerInterceptor, extra ...grpc.ServerOption) []grpc.ServerOption {
	opts := make([]grpc.ServerOption, 0, len(extra)+1)
	if len(unary) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(unary...))
	}
	return append(opts, extra...)
}
