package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"

	"ufsvault/pkg/unixfs"
)

// ErrNotProtoNode 数据不是合法的 dag-pb 节点
var ErrNotProtoNode = errors.New("core: invalid dag-pb node")

// DagLink 是 dag-pb 节点中指向子节点的一条边
// 文件内部链接 Name 为空，目录条目 Name 为条目名
type DagLink struct {
	Name  string
	Cid   cid.Cid
	Tsize uint64 // 子树的累计编码大小
}

// ProtoNode 是 dag-pb 编码的节点：一段 UnixFS Data 加上有序的链接列表
type ProtoNode struct {
	// 自身标识
	cid      cid.Cid
	rawBytes []byte

	Data  []byte
	Links []DagLink
}

// NewProtoNode 编码节点并计算 CID
// 链接按名字做稳定排序 (dag-pb 规范)，文件内部的空名链接保持原有顺序
func NewProtoNode(data []byte, links []DagLink, builder CidBuilder) (*ProtoNode, error) {
	sorted := slices.Clone(links)
	slices.SortStableFunc(sorted, func(a, b DagLink) int {
		return strings.Compare(a.Name, b.Name)
	})

	n := &ProtoNode{Data: data, Links: sorted}
	n.rawBytes = n.encode()

	c, err := builder.Sum(cid.DagProtobuf, n.rawBytes)
	if err != nil {
		return nil, err
	}
	n.cid = c
	return n, nil
}

// NewUnixFSNode 把 Record 编码进 dag-pb 节点
func NewUnixFSNode(rec *unixfs.Record, links []DagLink, builder CidBuilder) (*ProtoNode, error) {
	data, err := rec.Marshal()
	if err != nil {
		return nil, err
	}
	return NewProtoNode(data, links, builder)
}

func (n *ProtoNode) Cid() cid.Cid    { return n.cid }
func (n *ProtoNode) RawData() []byte { return n.rawBytes }

// CumulativeSize 节点自身编码长度加上全部子树的累计大小
func (n *ProtoNode) CumulativeSize() uint64 {
	size := uint64(len(n.rawBytes))
	for _, l := range n.Links {
		size += l.Tsize
	}
	return size
}

// UnixFS 解码节点携带的 UnixFS 记录
func (n *ProtoNode) UnixFS() (*unixfs.Record, error) {
	rec, err := unixfs.Unmarshal(n.Data)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.cid, err)
	}
	return rec, nil
}

// FindLink 按名字查找链接
func (n *ProtoNode) FindLink(name string) (DagLink, bool) {
	for _, l := range n.Links {
		if l.Name == name {
			return l, true
		}
	}
	return DagLink{}, false
}

// encode 严格按 dag-pb 规范的字段顺序：先 Links(2) 后 Data(1)
func (n *ProtoNode) encode() []byte {
	var b []byte
	for _, l := range n.Links {
		var lb []byte
		if l.Cid.Defined() {
			lb = protowire.AppendTag(lb, 1, protowire.BytesType)
			lb = protowire.AppendBytes(lb, l.Cid.Bytes())
		}
		lb = protowire.AppendTag(lb, 2, protowire.BytesType)
		lb = protowire.AppendString(lb, l.Name)
		lb = protowire.AppendTag(lb, 3, protowire.VarintType)
		lb = protowire.AppendVarint(lb, l.Tsize)

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}
	if n.Data != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, n.Data)
	}
	return b
}

// DecodeProtoNode 解码 dag-pb 字节，c 是调用方已知的 CID
func DecodeProtoNode(c cid.Cid, raw []byte) (*ProtoNode, error) {
	n := &ProtoNode{cid: c, rawBytes: raw}
	b := raw
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotProtoNode, c, protowire.ParseError(m))
		}
		b = b[m:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %s: data: %v", ErrNotProtoNode, c, protowire.ParseError(m))
			}
			b = b[m:]
			n.Data = v
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %s: link: %v", ErrNotProtoNode, c, protowire.ParseError(m))
			}
			b = b[m:]
			l, err := decodeLink(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotProtoNode, c, err)
			}
			n.Links = append(n.Links, l)
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %s: field %d: %v", ErrNotProtoNode, c, num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return n, nil
}

func decodeLink(b []byte) (DagLink, error) {
	var l DagLink
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return l, protowire.ParseError(m)
		}
		b = b[m:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			b = b[m:]
			c, err := cid.Cast(v)
			if err != nil {
				return l, fmt.Errorf("bad link hash: %w", err)
			}
			l.Cid = c
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			b = b[m:]
			l.Name = v
		case num == 3 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			b = b[m:]
			l.Tsize = v
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	if !l.Cid.Defined() {
		return l, fmt.Errorf("link %q has no hash", l.Name)
	}
	return l, nil
}
