package ingester

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"ufsvault/pkg/chunker"
	"ufsvault/pkg/core"
	"ufsvault/pkg/layout"
	"ufsvault/pkg/unixfs"
)

// ProgressFunc 每个叶子按输入顺序交给布局阶段时回调一次
type ProgressFunc func(bytes int64, path string)

// Options 控制文件如何被切分、编码和组织成树
type Options struct {
	Strategy           layout.Strategy
	Chunker            string
	MaxChildrenPerNode int
	LayerRepeat        int

	// RawLeaves 为 true 时叶子直接存为 raw codec 块 (CIDv1)
	RawLeaves bool
	// LeafType 非 raw 叶子使用的 UnixFS 类型 (file 或 raw)
	LeafType unixfs.Type

	ReduceSingleLeafToSelf bool

	CidVersion int
	HashAlg    string

	BlockWriteConcurrency int

	// OnlyHash 只计算 CID，不写存储
	OnlyHash bool

	// WrapWithDirectory 导入目录时在最外层包一个无名目录
	WrapWithDirectory bool

	Progress ProgressFunc
}

func DefaultOptions() Options {
	return Options{
		Strategy:               layout.Balanced,
		Chunker:                fmt.Sprintf("size-%d", chunker.DefaultBlockSize),
		MaxChildrenPerNode:     layout.DefaultMaxChildrenPerNode,
		LayerRepeat:            layout.DefaultLayerRepeat,
		RawLeaves:              false,
		LeafType:               unixfs.TFile,
		ReduceSingleLeafToSelf: true,
		CidVersion:             0,
		HashAlg:                "sha2-256",
		BlockWriteConcurrency:  10,
	}
}

// Validate 一次性返回全部非法参数
func (o Options) Validate() error {
	var result *multierror.Error

	switch o.Strategy {
	case layout.Balanced, layout.Flat, layout.Trickle:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: %s", layout.ErrBadStrategy, o.Strategy))
	}
	if o.MaxChildrenPerNode < 2 {
		result = multierror.Append(result, fmt.Errorf("max children per node must be >= 2, got %d", o.MaxChildrenPerNode))
	}
	if o.LayerRepeat < 1 {
		result = multierror.Append(result, fmt.Errorf("layer repeat must be >= 1, got %d", o.LayerRepeat))
	}
	if o.LeafType != unixfs.TFile && o.LeafType != unixfs.TRaw {
		result = multierror.Append(result, fmt.Errorf("leaf type must be file or raw, got %s", o.LeafType))
	}
	if o.BlockWriteConcurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("block write concurrency must be >= 1, got %d", o.BlockWriteConcurrency))
	}
	if _, err := core.NewCidBuilder(o.CidVersion, o.HashAlg); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := chunker.FromString(nil, o.Chunker); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func (o Options) layoutOptions() layout.Options {
	return layout.Options{
		MaxChildrenPerNode: o.MaxChildrenPerNode,
		LayerRepeat:        o.LayerRepeat,
	}
}

// FileMeta 是随文件一起保存的可选元数据
type FileMeta struct {
	Path  string
	Mode  *uint32
	Mtime *unixfs.Mtime
}

func (m FileMeta) hasMetadata() bool {
	return m.Mode != nil || m.Mtime != nil
}

func (m FileMeta) apply(rec *unixfs.Record) {
	if m.Mode != nil {
		rec.SetMode(*m.Mode)
	}
	if m.Mtime != nil {
		mt := *m.Mtime
		rec.Mtime = &mt
	}
}
