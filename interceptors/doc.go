// Package interceptors holds the unary gRPC server interceptors installed in
// front of the Pages service. Each constructor returns a single
// [grpc.UnaryServerInterceptor]; the server orders and chains them.
package interceptors
