package core

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Block 是所有 Merkle DAG 节点的通用接口：一个 CID 加上它对应的编码字节
type Block interface {
	// Cid 返回块的内容地址
	Cid() cid.Cid

	// RawData 返回块的编码数据 (用于存储)
	RawData() []byte
}

// basicBlock 用于承载从存储读回来的原始字节
type basicBlock struct {
	c    cid.Cid
	data []byte
}

// NewBlock 把已知 CID 和数据组装成 Block，不做校验
func NewBlock(c cid.Cid, data []byte) Block {
	return &basicBlock{c: c, data: data}
}

// NewBlockChecked 重新计算哈希，确认数据与 CID 匹配
func NewBlockChecked(c cid.Cid, data []byte) (Block, error) {
	got, err := c.Prefix().Sum(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash block %s: %w", c, err)
	}
	if !got.Equals(c) {
		return nil, fmt.Errorf("block data does not match cid %s (got %s)", c, got)
	}
	return &basicBlock{c: c, data: data}, nil
}

func (b *basicBlock) Cid() cid.Cid    { return b.c }
func (b *basicBlock) RawData() []byte { return b.data }

// CodecName 返回 codec 的可读名字
func CodecName(codec uint64) string {
	switch codec {
	case cid.Raw:
		return "raw"
	case cid.DagProtobuf:
		return "dag-pb"
	case cid.DagCBOR:
		return "dag-cbor"
	default:
		return fmt.Sprintf("codec-0x%x", codec)
	}
}
