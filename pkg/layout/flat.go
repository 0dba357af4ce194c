package layout

import (
	"context"

	"ufsvault/pkg/core"
)

// flat 只有一层：所有叶子挂在同一个根下
// 叶子数超过 MaxChildrenPerNode 时链式折叠：上一次的根占第一个位置，后面接新的叶子
func flat(ctx context.Context, source Source, reduce Reducer, opts Options) ([]core.Descriptor, error) {
	src := &peekSource{src: source}
	group, done, err := batch(ctx, src, opts.MaxChildrenPerNode)
	if err != nil {
		return nil, err
	}
	if len(group) == 0 {
		return nil, nil
	}

	for !done {
		// 当前组恰好填满时，先确认后面还有节点再折叠
		more, err := src.more(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}

		root, err := reduce(ctx, group)
		if err != nil {
			return nil, err
		}

		rest, isDone, err := batch(ctx, src, opts.MaxChildrenPerNode-1)
		if err != nil {
			return nil, err
		}
		group = append([]core.Descriptor{root}, rest...)
		done = isDone
	}

	root, err := reduce(ctx, group)
	if err != nil {
		return nil, err
	}
	return []core.Descriptor{root}, nil
}
