package service

import (
	"errors"
	"fmt"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
)

// errUnexpectedMeta 元数据帧只能出现在流的开头
var errUnexpectedMeta = errors.New("protocol violation: metadata frame in the middle of the stream")

// =============================================================================
// 1. Add Adapter: gRPC Stream -> io.Reader
// =============================================================================

// AddStream 定义了 Add 接口所需的最小集合，方便测试 Mock
type AddStream interface {
	Recv() (*ufsrpc.AddRequest, error)
}

// GrpcStreamReader 将 gRPC Add 流包装为 io.Reader
// 供 pkg/ingester 使用
type GrpcStreamReader struct {
	stream      AddStream
	internalBuf []byte // 内部缓冲：存储从 Recv 拿到的、还没被 Read 读走的数据
	err         error  // 存储流的状态错误 (如 EOF)
}

func NewGrpcStreamReader(stream AddStream) *GrpcStreamReader {
	return &GrpcStreamReader{
		stream: stream,
	}
}

// Read 实现了 io.Reader 接口
func (r *GrpcStreamReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}

	// 内部缓冲为空时去 gRPC 拉取新数据，空帧直接跳过
	for len(r.internalBuf) == 0 {
		req, err := r.stream.Recv()
		if err != nil {
			r.err = err // 可能是 io.EOF
			return 0, err
		}
		if req.Meta != nil {
			r.err = errUnexpectedMeta
			return 0, r.err
		}
		r.internalBuf = req.Chunk
	}

	copied := copy(p, r.internalBuf)
	r.internalBuf = r.internalBuf[copied:]
	return copied, nil
}

// =============================================================================
// 2. Cat Adapter: io.Writer -> gRPC Stream
// =============================================================================

// CatStream 定义了 Cat 接口所需的最小集合
type CatStream interface {
	Send(*ufsrpc.CatResponse) error
}

// GrpcStreamWriter 将 gRPC Cat 流包装为 io.Writer
// 供 pkg/exporter 使用
type GrpcStreamWriter struct {
	stream CatStream
}

func NewGrpcStreamWriter(stream CatStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

// Write 每写一块数据就发一个 gRPC 包，Send 返回前已完成序列化
func (w *GrpcStreamWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.stream.Send(&ufsrpc.CatResponse{Chunk: p}); err != nil {
		return 0, fmt.Errorf("grpc send failed: %w", err)
	}
	return len(p), nil
}
