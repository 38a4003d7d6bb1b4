// Package guardianapi defines the arc.guardian.v1.GuardianService gRPC
// contract. Requests and responses travel as google.protobuf.Struct; the
// typed messages in this package encode to and decode from that form.
package guardianapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "arc.guardian.v1.GuardianService"

// Full method names.
const (
	MethodRegister         = "/" + ServiceName + "/Register"
	MethodInitiate         = "/" + ServiceName + "/Initiate"
	MethodApprove          = "/" + ServiceName + "/Approve"
	MethodIsApproved       = "/" + ServiceName + "/IsApproved"
	MethodGetSession       = "/" + ServiceName + "/GetSession"
	MethodFinalize         = "/" + ServiceName + "/Finalize"
	MethodGetGuardians     = "/" + ServiceName + "/GetGuardians"
	MethodGetThreshold     = "/" + ServiceName + "/GetThreshold"
	MethodHasGuardians     = "/" + ServiceName + "/HasGuardians"
	MethodGetActiveSession = "/" + ServiceName + "/GetActiveSession"
)

// GuardianServiceServer is the server API for GuardianService.
type GuardianServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Initiate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsApproved(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Finalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGuardians(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetThreshold(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HasGuardians(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActiveSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(GuardianServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(GuardianServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc is the grpc.ServiceDesc for GuardianService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GuardianServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: handler(MethodRegister, GuardianServiceServer.Register)},
		{MethodName: "Initiate", Handler: handler(MethodInitiate, GuardianServiceServer.Initiate)},
		{MethodName: "Approve", Handler: handler(MethodApprove, GuardianServiceServer.Approve)},
		{MethodName: "IsApproved", Handler: handler(MethodIsApproved, GuardianServiceServer.IsApproved)},
		{MethodName: "GetSession", Handler: handler(MethodGetSession, GuardianServiceServer.GetSession)},
		{MethodName: "Finalize", Handler: handler(MethodFinalize, GuardianServiceServer.Finalize)},
		{MethodName: "GetGuardians", Handler: handler(MethodGetGuardians, GuardianServiceServer.GetGuardians)},
		{MethodName: "GetThreshold", Handler: handler(MethodGetThreshold, GuardianServiceServer.GetThreshold)},
		{MethodName: "HasGuardians", Handler: handler(MethodHasGuardians, GuardianServiceServer.HasGuardians)},
		{MethodName: "GetActiveSession", Handler: handler(MethodGetActiveSession, GuardianServiceServer.GetActiveSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arc/guardian/v1/guardian.proto",
}

// RegisterGuardianServiceServer registers srv with s.
func RegisterGuardianServiceServer(s grpc.ServiceRegistrar, srv GuardianServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GuardianServiceClient is the client API for GuardianService.
type GuardianServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGuardianServiceClient returns a client bound to cc.
func NewGuardianServiceClient(cc grpc.ClientConnInterface) *GuardianServiceClient {
	return &GuardianServiceClient{cc: cc}
}

// Invoke calls fullMethod with in and returns the response struct.
func (c *GuardianServiceClient) Invoke(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
