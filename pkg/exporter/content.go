package exporter

import (
	"context"
	"fmt"
	"iter"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/unixfs"
)

type contentOptions struct {
	offset *int64
	length *int64
}

// ContentOption 限定读取范围
type ContentOption func(*contentOptions)

// WithOffset 起始偏移，负数表示从末尾倒数
func WithOffset(offset int64) ContentOption {
	return func(o *contentOptions) { o.offset = &offset }
}

// WithLength 读取长度，超出末尾的部分会被截断
func WithLength(length int64) ContentOption {
	return func(o *contentOptions) { o.length = &length }
}

// validateRange 把 (offset, length) 归一化为 [start, end)
func validateRange(size uint64, o contentOptions) (start, end uint64, err error) {
	var off int64
	if o.offset != nil {
		off = *o.offset
	}
	if off < 0 {
		off += int64(size)
	}
	if off < 0 || uint64(off) > size {
		return 0, 0, fmt.Errorf("%w: offset %d outside [0, %d]", ErrInvalidParams, off, size)
	}

	start = uint64(off)
	end = size
	if o.length != nil {
		if *o.length < 0 {
			return 0, 0, fmt.Errorf("%w: negative length %d", ErrInvalidParams, *o.length)
		}
		end = start + min(uint64(*o.length), size-start)
	}
	return start, end, nil
}

// Content 惰性地按逻辑顺序产出请求范围内的字节
// 只会读取与范围相交的子树；提前结束迭代不会留下任何状态
func (en *Entry) Content(ctx context.Context, opts ...ContentOption) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		var o contentOptions
		for _, opt := range opts {
			opt(&o)
		}

		data, err := en.inlineContent()
		if err != nil {
			yield(nil, err)
			return
		}

		switch en.Kind {
		case KindFile:
			start, end, err := validateRange(en.Size, o)
			if err != nil {
				yield(nil, err)
				return
			}
			en.exp.walkFile(ctx, en.node, en.Record, start, end, yield)

		default:
			start, end, err := validateRange(uint64(len(data)), o)
			if err != nil {
				yield(nil, err)
				return
			}
			if end > start {
				yield(data[start:end], nil)
			}
		}
	}
}

// inlineContent 返回非文件条目的完整内容
func (en *Entry) inlineContent() ([]byte, error) {
	switch en.Kind {
	case KindFile:
		return nil, nil
	case KindRaw, KindIdentity:
		return en.data, nil
	case KindSymlink:
		return en.Record.Data, nil
	case KindObject:
		if en.data != nil {
			return en.data, nil
		}
		return core.EncodeObject(en.object)
	default:
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotFile, en.Path, en.Kind)
	}
}

// walkFile 产出 node 子树中 [start, end) 的字节，返回 false 表示已停止 (消费者退出或出错)
func (e *Exporter) walkFile(ctx context.Context, node *core.ProtoNode, rec *unixfs.Record, start, end uint64, yield func([]byte, error) bool) bool {
	if start >= end {
		return true
	}
	if err := ctx.Err(); err != nil {
		yield(nil, err)
		return false
	}

	// 1. 节点自身的内联数据在最前面
	pos := uint64(0)
	if n := uint64(len(rec.Data)); n > 0 {
		if start < n {
			if !yield(rec.Data[start:min(end, n)], nil) {
				return false
			}
		}
		pos = n
	}

	if len(node.Links) != len(rec.Blocksizes) {
		yield(nil, fmt.Errorf("%w: node %s has %d links but %d blocksizes", ErrCorrupt, node.Cid(), len(node.Links), len(rec.Blocksizes)))
		return false
	}

	// 2. 按 blocksizes 累加逻辑位置，不相交的子树直接跳过 (不读取)
	for i, link := range node.Links {
		if pos >= end {
			break
		}
		childStart := pos
		childEnd := pos + rec.Blocksizes[i]
		pos = childEnd
		if childEnd <= start {
			continue
		}

		lo := max(start, childStart) - childStart
		hi := min(end, childEnd) - childStart
		if !e.walkChild(ctx, link.Cid, lo, hi, yield) {
			return false
		}
	}
	return true
}

func (e *Exporter) walkChild(ctx context.Context, c cid.Cid, lo, hi uint64, yield func([]byte, error) bool) bool {
	blk, err := e.fetch(ctx, c)
	if err != nil {
		yield(nil, err)
		return false
	}

	switch c.Type() {
	case cid.Raw:
		data := blk.RawData()
		if hi > uint64(len(data)) {
			yield(nil, fmt.Errorf("%w: raw leaf %s has %d bytes, parent declares at least %d", ErrCorrupt, c, len(data), hi))
			return false
		}
		return yield(data[lo:hi], nil)

	case cid.DagProtobuf:
		node, err := core.DecodeProtoNode(c, blk.RawData())
		if err != nil {
			yield(nil, err)
			return false
		}
		rec, err := node.UnixFS()
		if err != nil {
			yield(nil, err)
			return false
		}
		if rec.Type != unixfs.TFile && rec.Type != unixfs.TRaw {
			yield(nil, fmt.Errorf("%w: %s node %s inside a file", ErrCorrupt, rec.Type, c))
			return false
		}
		if hi > rec.FileSize() {
			yield(nil, fmt.Errorf("%w: node %s has %d bytes, parent declares at least %d", ErrCorrupt, c, rec.FileSize(), hi))
			return false
		}
		return e.walkFile(ctx, node, rec, lo, hi, yield)

	default:
		yield(nil, fmt.Errorf("%w: codec %s inside a file", ErrUnsupported, core.CodecName(c.Type())))
		return false
	}
}

// Entries 惰性列举目录的子条目，每个子条目在迭代到时才读取
func (en *Entry) Entries(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		switch en.Kind {
		case KindDirectory:
		case KindHAMTShard:
			yield(nil, fmt.Errorf("%w: sharded directory %s", ErrUnsupported, en.Cid))
			return
		default:
			yield(nil, fmt.Errorf("%w: %s is a %s", ErrNotDirectory, en.Path, en.Kind))
			return
		}

		for _, link := range en.node.Links {
			child, err := en.exp.entryFor(ctx, link.Cid, link.Name, en.Path+"/"+link.Name)
			if !yield(child, err) || err != nil {
				return
			}
		}
	}
}
