package core

import (
	"github.com/ipfs/go-cid"
)

// RawNode 是 raw codec 的叶子节点：块数据就是文件内容本身，没有任何包装
type RawNode struct {
	cid  cid.Cid
	data []byte
}

// NewRawNode raw 叶子总是使用 CIDv1
func NewRawNode(data []byte, builder CidBuilder) (*RawNode, error) {
	c, err := builder.WithVersion(1).Sum(cid.Raw, data)
	if err != nil {
		return nil, err
	}
	return &RawNode{cid: c, data: data}, nil
}

func (r *RawNode) Cid() cid.Cid    { return r.cid }
func (r *RawNode) RawData() []byte { return r.data }
func (r *RawNode) Size() uint64    { return uint64(len(r.data)) }
