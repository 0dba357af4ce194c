package ufsrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DataService_Check_FullMethodName = "/ufsvault.v1.DataService/Check"
	DataService_Add_FullMethodName   = "/ufsvault.v1.DataService/Add"
	DataService_Cat_FullMethodName   = "/ufsvault.v1.DataService/Cat"
	DataService_Stat_FullMethodName  = "/ufsvault.v1.DataService/Stat"
	DataService_Ls_FullMethodName    = "/ufsvault.v1.DataService/Ls"
)

// DataServiceClient 数据面：上传、读取、列举
type DataServiceClient interface {
	Check(ctx context.Context, in *CheckRequest, opts ...grpc.CallOption) (*CheckResponse, error)
	Add(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[AddRequest, AddResponse], error)
	Cat(ctx context.Context, in *CatRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CatResponse], error)
	Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error)
	Ls(ctx context.Context, in *LsRequest, opts ...grpc.CallOption) (*LsResponse, error)
}

type dataServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDataServiceClient(cc grpc.ClientConnInterface) DataServiceClient {
	return &dataServiceClient{cc}
}

func (c *dataServiceClient) Check(ctx context.Context, in *CheckRequest, opts ...grpc.CallOption) (*CheckResponse, error) {
	out := new(CheckResponse)
	if err := c.cc.Invoke(ctx, DataService_Check_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataServiceClient) Add(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[AddRequest, AddResponse], error) {
	stream, err := c.cc.NewStream(ctx, &DataService_ServiceDesc.Streams[0], DataService_Add_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[AddRequest, AddResponse]{ClientStream: stream}, nil
}

func (c *dataServiceClient) Cat(ctx context.Context, in *CatRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CatResponse], error) {
	stream, err := c.cc.NewStream(ctx, &DataService_ServiceDesc.Streams[1], DataService_Cat_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[CatRequest, CatResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *dataServiceClient) Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error) {
	out := new(StatResponse)
	if err := c.cc.Invoke(ctx, DataService_Stat_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataServiceClient) Ls(ctx context.Context, in *LsRequest, opts ...grpc.CallOption) (*LsResponse, error) {
	out := new(LsResponse)
	if err := c.cc.Invoke(ctx, DataService_Ls_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// DataServiceServer 服务端实现必须嵌入 UnimplementedDataServiceServer
type DataServiceServer interface {
	Check(context.Context, *CheckRequest) (*CheckResponse, error)
	Add(grpc.ClientStreamingServer[AddRequest, AddResponse]) error
	Cat(*CatRequest, grpc.ServerStreamingServer[CatResponse]) error
	Stat(context.Context, *StatRequest) (*StatResponse, error)
	Ls(context.Context, *LsRequest) (*LsResponse, error)
	mustEmbedUnimplementedDataServiceServer()
}

type UnimplementedDataServiceServer struct{}

func (UnimplementedDataServiceServer) Check(context.Context, *CheckRequest) (*CheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Check not implemented")
}
func (UnimplementedDataServiceServer) Add(grpc.ClientStreamingServer[AddRequest, AddResponse]) error {
	return status.Error(codes.Unimplemented, "method Add not implemented")
}
func (UnimplementedDataServiceServer) Cat(*CatRequest, grpc.ServerStreamingServer[CatResponse]) error {
	return status.Error(codes.Unimplemented, "method Cat not implemented")
}
func (UnimplementedDataServiceServer) Stat(context.Context, *StatRequest) (*StatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Stat not implemented")
}
func (UnimplementedDataServiceServer) Ls(context.Context, *LsRequest) (*LsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ls not implemented")
}
func (UnimplementedDataServiceServer) mustEmbedUnimplementedDataServiceServer() {}

func RegisterDataServiceServer(s grpc.ServiceRegistrar, srv DataServiceServer) {
	s.RegisterService(&DataService_ServiceDesc, srv)
}

func _DataService_Check_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataServiceServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DataService_Check_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DataServiceServer).Check(ctx, req.(*CheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DataService_Add_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(DataServiceServer).Add(&grpc.GenericServerStream[AddRequest, AddResponse]{ServerStream: stream})
}

func _DataService_Cat_Handler(srv any, stream grpc.ServerStream) error {
	m := new(CatRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DataServiceServer).Cat(m, &grpc.GenericServerStream[CatRequest, CatResponse]{ServerStream: stream})
}

func _DataService_Stat_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataServiceServer).Stat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DataService_Stat_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DataServiceServer).Stat(ctx, req.(*StatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DataService_Ls_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataServiceServer).Ls(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DataService_Ls_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DataServiceServer).Ls(ctx, req.(*LsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// DataService_ServiceDesc 手写的服务描述，等价于 protoc-gen-go-grpc 的产物
var DataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ufsvault.v1.DataService",
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: _DataService_Check_Handler},
		{MethodName: "Stat", Handler: _DataService_Stat_Handler},
		{MethodName: "Ls", Handler: _DataService_Ls_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Add", Handler: _DataService_Add_Handler, ClientStreams: true},
		{StreamName: "Cat", Handler: _DataService_Cat_Handler, ServerStreams: true},
	},
	Metadata: "ufsvault/v1/data",
}
