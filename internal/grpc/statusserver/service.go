package statusserver

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "ctf.status.v1.StatusService"

// Full method names
const (
	FullMethodGetStatus   = "/" + ServiceName + "/GetStatus"
	FullMethodGetHistory  = "/" + ServiceName + "/GetHistory"
	FullMethodWatchStatus = "/" + ServiceName + "/WatchStatus"
	FullMethodPause       = "/" + ServiceName + "/Pause"
	FullMethodResume      = "/" + ServiceName + "/Resume"
)

// StatusServiceServer is the server API for the status service. Payloads
// are well-known protobuf types so no generated code is needed.
type StatusServiceServer interface {
	// GetStatus returns the current snapshot
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetHistory returns the full histories of one team, request {"team": "team_a"}
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// WatchStatus streams a snapshot every interval until the client goes away
	WatchStatus(*durationpb.Duration, StatusService_WatchStatusServer) error
	// Pause parks the training loop
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Resume continues a paused training loop
	Resume(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// StatusService_WatchStatusServer is the server side of WatchStatus
type StatusService_WatchStatusServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type statusServiceWatchStatusServer struct {
	grpc.ServerStream
}

func (x *statusServiceWatchStatusServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterStatusServiceServer registers srv on s
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusService_ServiceDesc, srv)
}

func _StatusService_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetStatus}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _StatusService_GetHistory_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetHistory}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetHistory(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _StatusService_Pause_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).Pause(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodPause}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).Pause(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _StatusService_Resume_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodResume}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).Resume(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _StatusService_WatchStatus_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(durationpb.Duration)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StatusServiceServer).WatchStatus(m, &statusServiceWatchStatusServer{stream})
}

// StatusService_ServiceDesc is the grpc.ServiceDesc for the status service
var StatusService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _StatusService_GetStatus_Handler},
		{MethodName: "GetHistory", Handler: _StatusService_GetHistory_Handler},
		{MethodName: "Pause", Handler: _StatusService_Pause_Handler},
		{MethodName: "Resume", Handler: _StatusService_Resume_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchStatus",
			Handler:       _StatusService_WatchStatus_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "ctf/status/v1/status.proto",
}

// StatusServiceClient is the client API for the status service
type StatusServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusServiceClient creates a client on cc
func NewStatusServiceClient(cc grpc.ClientConnInterface) *StatusServiceClient {
	return &StatusServiceClient{cc: cc}
}

// GetStatus fetches the current snapshot
func (c *StatusServiceClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHistory fetches the full histories of team, e.g. "team_a"
func (c *StatusServiceClient) GetHistory(ctx context.Context, team string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"team": team})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodGetHistory, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Pause parks the training loop
func (c *StatusServiceClient) Pause(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodPause, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Resume continues a paused training loop
func (c *StatusServiceClient) Resume(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodResume, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusService_WatchStatusClient is the client side of WatchStatus
type StatusService_WatchStatusClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

// WatchStatus opens a stream of snapshots sent every interval
func (c *StatusServiceClient) WatchStatus(ctx context.Context, interval time.Duration, opts ...grpc.CallOption) (StatusService_WatchStatusClient, error) {
	stream, err := c.cc.NewStream(ctx, &StatusService_ServiceDesc.Streams[0], FullMethodWatchStatus, opts...)
	if err != nil {
		return nil, err
	}
	x := &statusServiceWatchStatusClient{stream}
	if err := x.ClientStream.SendMsg(durationpb.New(interval)); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type statusServiceWatchStatusClient struct {
	grpc.ClientStream
}

func (x *statusServiceWatchStatusClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
