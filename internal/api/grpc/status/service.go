package status

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "firesentinel.v1.StatusService"
	// GetStatusMethod is the full method name of GetStatus.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
)

// StatusServiceServer is the server API of the status service.
type StatusServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// StatusServiceDesc describes the status service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var StatusServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "firesentinel/v1/status.proto",
}

// RegisterStatusServiceServer registers srv on s.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusServiceDesc, srv)
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}
