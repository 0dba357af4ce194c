package server

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/app"
	"ufsvault/pkg/service"
)

// MaxMsgSize 单条消息上限，Add/Cat 的帧远小于这个值
const MaxMsgSize = 64 << 20

// New 组装 gRPC Server：拦截器链、服务注册和健康检查
// Recovery 在最外层，这样 Logging 里的 panic 也能被捕获
func New(application *app.App, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryRecoveryInterceptor, UnaryLoggingInterceptor),
		grpc.ChainStreamInterceptor(StreamRecoveryInterceptor, StreamLoggingInterceptor),
		grpc.MaxRecvMsgSize(MaxMsgSize),
		grpc.MaxSendMsgSize(MaxMsgSize),
		// 客户端每 10s ping 一次
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	srv := grpc.NewServer(append(base, opts...)...)

	ufsrpc.RegisterDataServiceServer(srv, service.NewDataService(application))
	ufsrpc.RegisterMetaServiceServer(srv, service.NewMetaService(application))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ufsrpc.DataService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ufsrpc.MetaService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}
