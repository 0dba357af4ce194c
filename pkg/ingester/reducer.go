package ingester

import (
	"context"
	"fmt"

	"ufsvault/pkg/core"
	"ufsvault/pkg/layout"
	"ufsvault/pkg/unixfs"
)

// reducer 返回把一组子节点折叠为 file 父节点的 layout.Reducer
func (ing *Ingester) reducer(meta FileMeta) layout.Reducer {
	return func(ctx context.Context, group []core.Descriptor) (core.Descriptor, error) {
		// 1. 整个文件只有一个叶子
		if len(group) == 1 && group[0].Single && ing.opts.ReduceSingleLeafToSelf {
			leaf := group[0]
			if !meta.hasMetadata() {
				return leaf, nil
			}
			// 元数据没有别的地方可放，只能重新包装
			return ing.rewrapLeaf(ctx, leaf, meta)
		}

		// 2. 构造父节点
		rec := unixfs.New(unixfs.TFile)
		meta.apply(rec)

		links := make([]core.DagLink, 0, len(group))
		var want uint64
		for _, child := range group {
			size, keep := blockSize(child)
			if !keep {
				// 空块不占链接
				continue
			}
			rec.AddBlockSize(size)
			links = append(links, core.DagLink{Cid: child.Cid, Tsize: child.Size})
			want += child.FileSize
		}

		// 3. size invariant
		if got := rec.FileSize(); got != want {
			return core.Descriptor{}, fmt.Errorf("%w: blocksizes sum to %d, children declare %d", ErrSizeMismatch, got, want)
		}

		node, err := core.NewUnixFSNode(rec, links, ing.builder)
		if err != nil {
			return core.Descriptor{}, err
		}
		if err := ing.persist(ctx, node); err != nil {
			return core.Descriptor{}, err
		}

		return core.Descriptor{
			Cid:      node.Cid(),
			Size:     node.CumulativeSize(),
			FileSize: rec.FileSize(),
			Record:   rec,
			Path:     meta.Path,
		}, nil
	}
}

// blockSize 计算子节点在父节点 blocksizes 中的值，keep=false 表示该子节点应被丢弃
func blockSize(d core.Descriptor) (size uint64, keep bool) {
	switch {
	case d.IsRaw():
		// raw 叶子：数据长度
		return d.FileSize, d.FileSize > 0
	case len(d.Record.Data) > 0:
		// UnixFS 叶子：内联数据长度
		return uint64(len(d.Record.Data)), true
	default:
		// 内部节点：声明的文件大小
		fs := d.Record.FileSize()
		return fs, fs > 0
	}
}

// rewrapLeaf 把单个叶子重新包装为带元数据的 file 节点
// 直接复用内存中的数据，不再从存储读回
func (ing *Ingester) rewrapLeaf(ctx context.Context, leaf core.Descriptor, meta FileMeta) (core.Descriptor, error) {
	var data []byte
	if leaf.IsRaw() {
		data = leaf.Raw
	} else {
		data = leaf.Record.Data
	}

	rec := unixfs.NewFile(data)
	meta.apply(rec)

	node, err := core.NewUnixFSNode(rec, nil, ing.builder)
	if err != nil {
		return core.Descriptor{}, err
	}
	if err := ing.persist(ctx, node); err != nil {
		return core.Descriptor{}, err
	}

	return core.Descriptor{
		Cid:      node.Cid(),
		Size:     node.CumulativeSize(),
		FileSize: rec.FileSize(),
		Record:   rec,
		Path:     meta.Path,
	}, nil
}
