package ufsrpc

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName 消息使用 CBOR 编码，通过 content-subtype 选择 ("application/grpc+cbor")
const CodecName = "cbor"

var (
	encMode, _ = cbor.CoreDetEncOptions().EncMode()
	decMode, _ = cbor.DecOptions{}.DecMode()
)

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return encMode.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }
func (codec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}

// withCodec 所有调用都强制使用 CBOR
func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
