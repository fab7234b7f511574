package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "mirador.uptime.v1.UptimeAnalytics"

// UptimeAnalyticsServer is the server API for the UptimeAnalytics service. Responses are JSON
// documents carried as google.protobuf.Struct.
type UptimeAnalyticsServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListOutages(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSummary(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterUptimeAnalyticsServer attaches srv to a gRPC registrar.
func RegisterUptimeAnalyticsServer(s grpc.ServiceRegistrar, srv UptimeAnalyticsServer) {
	s.RegisterService(&UptimeAnalyticsServiceDesc, srv)
}

type unaryCall func(UptimeAnalyticsServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(UptimeAnalyticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(UptimeAnalyticsServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// UptimeAnalyticsServiceDesc describes the UptimeAnalytics service for grpc.Server.
var UptimeAnalyticsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UptimeAnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unaryHandler("GetStatus", UptimeAnalyticsServer.GetStatus)},
		{MethodName: "ListOutages", Handler: unaryHandler("ListOutages", UptimeAnalyticsServer.ListOutages)},
		{MethodName: "GetStats", Handler: unaryHandler("GetStats", UptimeAnalyticsServer.GetStats)},
		{MethodName: "GetSummary", Handler: unaryHandler("GetSummary", UptimeAnalyticsServer.GetSummary)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/uptime/v1/uptime.proto",
}

// UptimeAnalyticsClient calls the UptimeAnalytics service.
type UptimeAnalyticsClient struct {
	cc grpc.ClientConnInterface
}

// NewUptimeAnalyticsClient wraps a client connection.
func NewUptimeAnalyticsClient(cc grpc.ClientConnInterface) *UptimeAnalyticsClient {
	return &UptimeAnalyticsClient{cc: cc}
}

func (c *UptimeAnalyticsClient) invoke(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStatus returns the live connection report.
func (c *UptimeAnalyticsClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStatus", opts...)
}

// ListOutages returns per-target and full outages.
func (c *UptimeAnalyticsClient) ListOutages(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListOutages", opts...)
}

// GetStats returns per-target statistics.
func (c *UptimeAnalyticsClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStats", opts...)
}

// GetSummary returns the outage summary.
func (c *UptimeAnalyticsClient) GetSummary(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetSummary", opts...)
}
