package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The control plane speaks protobuf well-known types only, so the service
// descriptor is declared by hand instead of generated.

const ServiceName = "quoteticker.control.v1.QuoteControl"

const (
	methodGetSettings    = "GetSettings"
	methodUpdateSettings = "UpdateSettings"
	methodRefreshQuotes  = "RefreshQuotes"
	methodGetStatus      = "GetStatus"
)

// QuoteControlServer is the server API for the control service.
type QuoteControlServer interface {
	GetSettings(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	UpdateSettings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshQuotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// -----------------------------------------------------------------------------

func unaryHandler[Req any](method string, call func(QuoteControlServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(QuoteControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(QuoteControlServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// QuoteControlServiceDesc describes the control service for grpc.Server.
var QuoteControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QuoteControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(methodGetSettings, QuoteControlServer.GetSettings),
		unaryHandler(methodUpdateSettings, QuoteControlServer.UpdateSettings),
		unaryHandler(methodRefreshQuotes, QuoteControlServer.RefreshQuotes),
		unaryHandler(methodGetStatus, QuoteControlServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quoteticker/control/v1/control.proto",
}

// -----------------------------------------------------------------------------

func RegisterQuoteControlServer(s grpc.ServiceRegistrar, srv QuoteControlServer) {
	s.RegisterService(&QuoteControlServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type QuoteControlClient struct {
	cc grpc.ClientConnInterface
}

func NewQuoteControlClient(cc grpc.ClientConnInterface) *QuoteControlClient {
	return &QuoteControlClient{cc: cc}
}

func (c *QuoteControlClient) GetSettings(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod(methodGetSettings), &emptypb.Empty{}, out, opts...)
	return out, err
}

func (c *QuoteControlClient) UpdateSettings(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod(methodUpdateSettings), in, out, opts...)
	return out, err
}

func (c *QuoteControlClient) RefreshQuotes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod(methodRefreshQuotes), in, out, opts...)
	return out, err
}

func (c *QuoteControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod(methodGetStatus), &emptypb.Empty{}, out, opts...)
	return out, err
}
