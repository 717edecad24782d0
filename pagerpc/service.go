// Package pagerpc exposes the link page service over gRPC as
// linksquirrel.Pages. It registers a hand-written [grpc.ServiceDesc] and a
// codec that carries the plain Go messages as JSON, so no protobuf code
// generation is required.
package pagerpc

import (
	"context"

	"github.com/Keksclan/linkSquirrel/policy"
	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "linksquirrel.Pages"

// Handler is the interface a Pages service implementation must satisfy.
type Handler interface {
	GetProfile(ctx context.Context, req *GetProfileRequest) (*ProfileResponse, error)
	GetAIPage(ctx context.Context, req *GetAIPageRequest) (*AIPageResponse, error)
	SaveProfile(ctx context.Context, req *SaveProfileRequest) (*ProfileResponse, error)
	SaveAIPage(ctx context.Context, req *SaveAIPageRequest) (*AIPageResponse, error)
	DeleteAIPage(ctx context.Context, req *DeleteAIPageRequest) (*Empty, error)
	InvalidateTag(ctx context.Context, req *InvalidateTagRequest) (*Empty, error)
}

// ServiceDesc is the grpc.ServiceDesc for the linksquirrel.Pages service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProfile", Handler: unary(policy.OpGetProfile, Handler.GetProfile)},
		{MethodName: "GetAIPage", Handler: unary(policy.OpGetAIPage, Handler.GetAIPage)},
		{MethodName: "SaveProfile", Handler: unary(policy.OpSaveProfile, Handler.SaveProfile)},
		{MethodName: "SaveAIPage", Handler: unary(policy.OpSaveAIPage, Handler.SaveAIPage)},
		{MethodName: "DeleteAIPage", Handler: unary(policy.OpDeleteAIPage, Handler.DeleteAIPage)},
		{MethodName: "InvalidateTag", Handler: unary(policy.OpInvalidateTag, Handler.InvalidateTag)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linksquirrel/pages.proto",
}

// unary builds the method handler for one RPC from its Handler method.
func unary[Req, Resp any](fullMethod string, call func(Handler, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(Handler), ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, r any) (any, error) {
			return call(srv.(Handler), ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// Register registers a Pages service implementation on the given gRPC server.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}
