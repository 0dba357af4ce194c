package ingester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"ufsvault/pkg/chunker"
	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/unixfs"
)

var (
	// ErrSizeMismatch 父节点的 blocksizes 与子节点逻辑大小之和不一致 (内部 bug)
	ErrSizeMismatch = errors.New("ingester: child block sizes do not add up")
)

// Ingester 把字节流导入为 UnixFS 文件 DAG
type Ingester struct {
	store   storage.Store
	opts    Options
	builder core.CidBuilder
}

// NewIngester store 在 OnlyHash 模式下可以为 nil
func NewIngester(store storage.Store, opts Options) (*Ingester, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid import options: %w", err)
	}
	if store == nil && !opts.OnlyHash {
		return nil, fmt.Errorf("a store is required unless only-hash is set")
	}
	builder, err := core.NewCidBuilder(opts.CidVersion, opts.HashAlg)
	if err != nil {
		return nil, err
	}
	return &Ingester{store: store, opts: opts, builder: builder}, nil
}

func (ing *Ingester) Options() Options { return ing.opts }

// CidBuilder 目录等上层节点应使用与文件相同的 CID 参数
func (ing *Ingester) CidBuilder() core.CidBuilder { return ing.builder }

// IngestFile 读取一个文件流，切分、存储，并返回根描述符
func (ing *Ingester) IngestFile(ctx context.Context, reader io.Reader, meta FileMeta) (core.Descriptor, error) {
	// 1. 切分器
	splitter, err := chunker.FromString(reader, ing.opts.Chunker)
	if err != nil {
		return core.Descriptor{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. 有序并发的叶子流水线
	var progress func(core.Descriptor)
	if ing.opts.Progress != nil {
		progress = func(d core.Descriptor) { ing.opts.Progress(int64(d.FileSize), meta.Path) }
	}
	leaves := newLeafImporter(ctx, splitter, func(ctx context.Context, chunk []byte) (core.Descriptor, error) {
		return ing.buildLeaf(ctx, chunk, meta.Path)
	}, ing.opts.BlockWriteConcurrency, progress)
	defer leaves.Close()

	// 3. 布局 + 折叠
	root, err := ing.opts.Strategy.Build(ctx, &singleLeafSource{src: leaves}, ing.reducer(meta), ing.opts.layoutOptions())
	if err != nil {
		return core.Descriptor{}, fmt.Errorf("failed to import %q: %w", meta.Path, err)
	}

	slog.Debug("file imported",
		"path", meta.Path,
		"cid", root.Cid.String(),
		"size", root.FileSize,
		"strategy", ing.opts.Strategy.String(),
	)
	return root, nil
}

// buildLeaf 把一个块包装成叶子并持久化
func (ing *Ingester) buildLeaf(ctx context.Context, chunk []byte, path string) (core.Descriptor, error) {
	if ing.opts.RawLeaves {
		n, err := core.NewRawNode(chunk, ing.builder)
		if err != nil {
			return core.Descriptor{}, err
		}
		if err := ing.persist(ctx, n); err != nil {
			return core.Descriptor{}, err
		}
		return core.Descriptor{
			Cid:      n.Cid(),
			Size:     n.Size(),
			FileSize: n.Size(),
			Raw:      chunk,
			Path:     path,
		}, nil
	}

	rec := &unixfs.Record{Type: ing.opts.LeafType, Data: chunk}
	n, err := core.NewUnixFSNode(rec, nil, ing.builder)
	if err != nil {
		return core.Descriptor{}, err
	}
	if err := ing.persist(ctx, n); err != nil {
		return core.Descriptor{}, err
	}
	return core.Descriptor{
		Cid:      n.Cid(),
		Size:     n.CumulativeSize(),
		FileSize: rec.FileSize(),
		Record:   rec,
		Path:     path,
	}, nil
}

// persist OnlyHash 模式下跳过写入
func (ing *Ingester) persist(ctx context.Context, blk core.Block) error {
	if ing.opts.OnlyHash {
		return nil
	}
	if err := ing.store.Put(ctx, blk); err != nil {
		return fmt.Errorf("failed to persist block %s: %w", blk.Cid(), err)
	}
	return nil
}
