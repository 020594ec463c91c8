// Package adminrpc exposes the cache and navigation control plane used by
// CMS operators over gRPC. Messages are protobuf well-known types so no
// generated code is needed.
package adminrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "storefront.admin.v1.CacheAdmin"

// Full method names
const (
	MethodGetMetrics         = "/" + ServiceName + "/GetMetrics"
	MethodGetRecommendations = "/" + ServiceName + "/GetRecommendations"
	MethodInvalidateAll      = "/" + ServiceName + "/InvalidateAll"
	MethodWarm               = "/" + ServiceName + "/Warm"
	MethodSetLocale          = "/" + ServiceName + "/SetLocale"
	MethodClearNavigation    = "/" + ServiceName + "/ClearNavigation"
)

// CacheAdminServer is the server API for the CacheAdmin service
type CacheAdminServer interface {
	// GetMetrics returns the cache metrics view
	GetMetrics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetRecommendations returns {"recommendations": [...]}
	GetRecommendations(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// InvalidateAll takes {"reason"} and returns {"removed"}
	InvalidateAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Warm starts a warming pass and returns {"started"}
	Warm(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// SetLocale takes {"language", "country"} and returns {"changed"}
	SetLocale(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ClearNavigation drops every navigation snapshot and returns {"cleared"}
	ClearNavigation(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler
func unaryHandler[Req proto.Message](
	fullMethod string,
	newReq func() Req,
	call func(CacheAdminServer, context.Context, Req) (*structpb.Struct, error),
) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CacheAdminServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CacheAdminServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty   { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

// ServiceDesc is the grpc.ServiceDesc for the CacheAdmin service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CacheAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetMetrics",
			Handler:    unaryHandler(MethodGetMetrics, newEmpty, CacheAdminServer.GetMetrics),
		},
		{
			MethodName: "GetRecommendations",
			Handler:    unaryHandler(MethodGetRecommendations, newEmpty, CacheAdminServer.GetRecommendations),
		},
		{
			MethodName: "InvalidateAll",
			Handler:    unaryHandler(MethodInvalidateAll, newStruct, CacheAdminServer.InvalidateAll),
		},
		{
			MethodName: "Warm",
			Handler:    unaryHandler(MethodWarm, newEmpty, CacheAdminServer.Warm),
		},
		{
			MethodName: "SetLocale",
			Handler:    unaryHandler(MethodSetLocale, newStruct, CacheAdminServer.SetLocale),
		},
		{
			MethodName: "ClearNavigation",
			Handler:    unaryHandler(MethodClearNavigation, newEmpty, CacheAdminServer.ClearNavigation),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/admin/v1/cache_admin.proto",
}

// Register registers srv on s
func Register(s grpc.ServiceRegistrar, srv CacheAdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is the client API for the CacheAdmin service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a CacheAdmin client over cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMetrics fetches the cache metrics view
func (c *Client) GetMetrics(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetMetrics, &emptypb.Empty{}, opts...)
}

// GetRecommendations fetches the advisory hints
func (c *Client) GetRecommendations(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetRecommendations, &emptypb.Empty{}, opts...)
}

// InvalidateAll drops the whole cache
func (c *Client) InvalidateAll(ctx context.Context, reason string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"reason": reason})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, MethodInvalidateAll, in, opts...)
}

// Warm starts a warming pass
func (c *Client) Warm(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodWarm, &emptypb.Empty{}, opts...)
}

// SetLocale switches the catalog locale
func (c *Client) SetLocale(ctx context.Context, language, country string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"language": language, "country": country})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, MethodSetLocale, in, opts...)
}

// ClearNavigation drops every navigation snapshot
func (c *Client) ClearNavigation(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodClearNavigation, &emptypb.Empty{}, opts...)
}
