package colorservice

import (
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName       = "voxrgb.Colorizer"
	ConvertMethodName = "/voxrgb.Colorizer/Convert"
)

// ColorizerServer colours the volume carried by a request.
type ColorizerServer interface {
	Convert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func RegisterColorizerServer(s *grpc.Server, srv ColorizerServer) {
	s.RegisterService(&colorizerServiceDesc, srv)
}

func convertHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ColorizerServer).Convert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ConvertMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ColorizerServer).Convert(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var colorizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ColorizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Convert",
			Handler:    convertHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "colorizer.proto",
}

// ColorizerClient calls a remote Colorizer.
type ColorizerClient struct {
	cc *grpc.ClientConn
}

func NewColorizerClient(cc *grpc.ClientConn) *ColorizerClient {
	return &ColorizerClient{cc: cc}
}

func (c *ColorizerClient) Convert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ConvertMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
