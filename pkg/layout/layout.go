// Package layout 定义把叶子描述符流组织成树的三种布局策略
package layout

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ufsvault/pkg/core"
)

var (
	ErrBadStrategy  = errors.New("layout: unknown build strategy")
	ErrTooManyRoots = errors.New("layout: expected a maximum of 1 roots")
	ErrNoRoot       = errors.New("layout: source produced no leaves")
)

// Source 是按输入顺序产出叶子描述符的拉取式迭代器，结束时返回 io.EOF
type Source interface {
	Next(ctx context.Context) (core.Descriptor, error)
}

// Reducer 把一组子节点折叠为一个父节点
type Reducer func(ctx context.Context, group []core.Descriptor) (core.Descriptor, error)

// Options 布局参数
type Options struct {
	// 每个内部节点最多的子节点数 (balanced/flat 的分组大小，trickle 的叶子层宽度)
	MaxChildrenPerNode int
	// trickle 每个深度重复的子树个数
	LayerRepeat int
}

const (
	DefaultMaxChildrenPerNode = 174
	DefaultLayerRepeat        = 4
)

func DefaultOptions() Options {
	return Options{
		MaxChildrenPerNode: DefaultMaxChildrenPerNode,
		LayerRepeat:        DefaultLayerRepeat,
	}
}

func (o Options) validate() error {
	if o.MaxChildrenPerNode < 2 {
		return fmt.Errorf("layout: max children per node must be >= 2, got %d", o.MaxChildrenPerNode)
	}
	if o.LayerRepeat < 1 {
		return fmt.Errorf("layout: layer repeat must be >= 1, got %d", o.LayerRepeat)
	}
	return nil
}

// Strategy 是封闭的布局策略枚举
type Strategy int

const (
	Balanced Strategy = iota
	Flat
	Trickle
)

var strategyNames = map[Strategy]string{
	Balanced: "balanced",
	Flat:     "flat",
	Trickle:  "trickle",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy 按名字查找策略
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadStrategy, name)
}

// Build 消费整个叶子流并返回唯一的根描述符
func (s Strategy) Build(ctx context.Context, src Source, reduce Reducer, opts Options) (core.Descriptor, error) {
	if err := opts.validate(); err != nil {
		return core.Descriptor{}, err
	}

	var (
		roots []core.Descriptor
		err   error
	)
	switch s {
	case Balanced:
		roots, err = balanced(ctx, src, reduce, opts)
	case Flat:
		roots, err = flat(ctx, src, reduce, opts)
	case Trickle:
		roots, err = trickle(ctx, src, reduce, opts)
	default:
		return core.Descriptor{}, fmt.Errorf("%w: %s", ErrBadStrategy, s)
	}
	if err != nil {
		return core.Descriptor{}, err
	}
	return singleRoot(roots)
}

func singleRoot(roots []core.Descriptor) (core.Descriptor, error) {
	switch len(roots) {
	case 0:
		return core.Descriptor{}, ErrNoRoot
	case 1:
		return roots[0], nil
	default:
		return core.Descriptor{}, fmt.Errorf("%w, got %d", ErrTooManyRoots, len(roots))
	}
}

// batch 从 src 中最多取 n 个描述符，流结束时 done=true
func batch(ctx context.Context, src Source, n int) (group []core.Descriptor, done bool, err error) {
	for len(group) < n {
		d, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return group, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		group = append(group, d)
	}
	return group, false, nil
}

// sliceSource 把已经产出的描述符重新包装成 Source
type sliceSource struct {
	items []core.Descriptor
}

func (s *sliceSource) Next(ctx context.Context) (core.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return core.Descriptor{}, err
	}
	if len(s.items) == 0 {
		return core.Descriptor{}, io.EOF
	}
	d := s.items[0]
	s.items = s.items[1:]
	return d, nil
}

// NewSliceSource 方便测试与内存中已有叶子的场景
func NewSliceSource(items []core.Descriptor) Source {
	return &sliceSource{items: items}
}

// peekSource 支持一步前瞻的 Source
type peekSource struct {
	src  Source
	head *core.Descriptor
	eof  bool
}

func (p *peekSource) Next(ctx context.Context) (core.Descriptor, error) {
	if p.head != nil {
		d := *p.head
		p.head = nil
		return d, nil
	}
	if p.eof {
		return core.Descriptor{}, io.EOF
	}
	d, err := p.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		p.eof = true
	}
	return d, err
}

// more 报告流中是否还有节点，不消费它
func (p *peekSource) more(ctx context.Context) (bool, error) {
	if p.head != nil {
		return true, nil
	}
	if p.eof {
		return false, nil
	}
	d, err := p.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		p.eof = true
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.head = &d
	return true, nil
}
