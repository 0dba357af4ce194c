package layout

import (
	"context"

	"ufsvault/pkg/core"
)

// trickle 构造层叠树：每个节点先挂 MaxChildrenPerNode 个叶子，
// 然后对深度 1, 2, 3... 各挂 LayerRepeat 棵对应深度的子树。
// 浅层先填满，深层子树随后才出现，适合边写边读的流式场景。
//
//	+-------------+
//	|    Root     |
//	+-------------+
//	 |  ...  |   \________________
//	leaves   depth-1 x R   depth-2 x R ...
func trickle(ctx context.Context, source Source, reduce Reducer, opts Options) ([]core.Descriptor, error) {
	src := &peekSource{src: source}
	root, err := fillTrickle(ctx, src, reduce, opts, -1)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	return []core.Descriptor{*root}, nil
}

// fillTrickle 构造一棵深度不超过 maxDepth 的子树，maxDepth < 0 表示不限
// 流恰好在层边界结束时停止，不会产生空的更深子树
func fillTrickle(ctx context.Context, src *peekSource, reduce Reducer, opts Options, maxDepth int) (*core.Descriptor, error) {
	// 1. 叶子层
	children, done, err := batch(ctx, src, opts.MaxChildrenPerNode)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}

	// 2. 逐个深度追加子树
	if !done {
	layers:
		for depth := 1; maxDepth < 0 || depth < maxDepth; depth++ {
			for range opts.LayerRepeat {
				more, err := src.more(ctx)
				if err != nil {
					return nil, err
				}
				if !more {
					break layers
				}
				sub, err := fillTrickle(ctx, src, reduce, opts, depth)
				if err != nil {
					return nil, err
				}
				children = append(children, *sub)
			}
		}
	}

	// 3. 折叠当前节点
	parent, err := reduce(ctx, children)
	if err != nil {
		return nil, err
	}
	return &parent, nil
}
