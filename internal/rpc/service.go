// Package rpc exposes the simulation host over gRPC. Messages are
// structpb.Struct values carrying the same JSON shapes as the HTTP API.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName      = "wishsim.v1.Simulator"
	RunFullMethod    = "/" + ServiceName + "/Run"
	WatchFullMethod  = "/" + ServiceName + "/Watch"
	serviceProtoFile = "wishsim/v1/simulator.proto"
)

// SimulatorServer is the server API for the Simulator service.
type SimulatorServer interface {
	// Run blocks until the simulation finishes.
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Watch streams progress frames followed by one result frame.
	Watch(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterSimulatorServer(s grpc.ServiceRegistrar, srv SimulatorServer) {
	s.RegisterService(&SimulatorServiceDesc, srv)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulatorServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulatorServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SimulatorServer).Watch(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// SimulatorServiceDesc is the grpc.ServiceDesc for the Simulator service.
var SimulatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: serviceProtoFile,
}
