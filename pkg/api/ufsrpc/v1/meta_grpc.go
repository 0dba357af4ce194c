package ufsrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	MetaService_GetHead_FullMethodName  = "/ufsvault.v1.MetaService/GetHead"
	MetaService_Snapshot_FullMethodName = "/ufsvault.v1.MetaService/Snapshot"
)

// MetaServiceClient 控制面：HEAD 与快照
type MetaServiceClient interface {
	GetHead(ctx context.Context, in *GetHeadRequest, opts ...grpc.CallOption) (*GetHeadResponse, error)
	Snapshot(ctx context.Context, in *SnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error)
}

type metaServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMetaServiceClient(cc grpc.ClientConnInterface) MetaServiceClient {
	return &metaServiceClient{cc}
}

func (c *metaServiceClient) GetHead(ctx context.Context, in *GetHeadRequest, opts ...grpc.CallOption) (*GetHeadResponse, error) {
	out := new(GetHeadResponse)
	if err := c.cc.Invoke(ctx, MetaService_GetHead_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaServiceClient) Snapshot(ctx context.Context, in *SnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	out := new(SnapshotResponse)
	if err := c.cc.Invoke(ctx, MetaService_Snapshot_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type MetaServiceServer interface {
	GetHead(context.Context, *GetHeadRequest) (*GetHeadResponse, error)
	Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error)
	mustEmbedUnimplementedMetaServiceServer()
}

type UnimplementedMetaServiceServer struct{}

func (UnimplementedMetaServiceServer) GetHead(context.Context, *GetHeadRequest) (*GetHeadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHead not implemented")
}
func (UnimplementedMetaServiceServer) Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Snapshot not implemented")
}
func (UnimplementedMetaServiceServer) mustEmbedUnimplementedMetaServiceServer() {}

func RegisterMetaServiceServer(s grpc.ServiceRegistrar, srv MetaServiceServer) {
	s.RegisterService(&MetaService_ServiceDesc, srv)
}

func _MetaService_GetHead_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetHeadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetaServiceServer).GetHead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MetaService_GetHead_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MetaServiceServer).GetHead(ctx, req.(*GetHeadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MetaService_Snapshot_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetaServiceServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MetaService_Snapshot_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MetaServiceServer).Snapshot(ctx, req.(*SnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var MetaService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ufsvault.v1.MetaService",
	HandlerType: (*MetaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetHead", Handler: _MetaService_GetHead_Handler},
		{MethodName: "Snapshot", Handler: _MetaService_Snapshot_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ufsvault/v1/meta",
}
