package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLoggingInterceptor 拦截普通请求 (Check / Stat / Ls / MetaService)
func UnaryLoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logRPC(ctx, "unary", info.FullMethod, time.Since(start), err)
	return resp, err
}

// StreamLoggingInterceptor 拦截流式请求 (Add / Cat)
func StreamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	logRPC(ss.Context(), "stream", info.FullMethod, time.Since(start), err)
	return err
}

// levelFor 非 OK 视为警告，服务端故障视为错误
func levelFor(code codes.Code) slog.Level {
	switch code {
	case codes.OK:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func logRPC(ctx context.Context, kind, method string, duration time.Duration, err error) {
	code := status.Code(err)

	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("method", method),
		slog.String("code", code.String()),
		slog.Duration("dur", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	slog.LogAttrs(ctx, levelFor(code), "gRPC request", attrs...)
}

// =============================================================================
// 2. Recovery Interceptor
// =============================================================================

// UnaryRecoveryInterceptor 捕获 Panic
func UnaryRecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

// StreamRecoveryInterceptor 捕获 Panic
func StreamRecoveryInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(srv, ss)
}

func recoverFromPanic(method string, p any) error {
	slog.Error("panic recovered",
		slog.String("method", method),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	// 客户端只看到 Internal，连接不会被断开
	return status.Errorf(codes.Internal, "internal server error: panic recovered")
}
