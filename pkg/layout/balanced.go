package layout

import (
	"context"

	"ufsvault/pkg/core"
)

// balanced 自底向上：每 B 个连续节点折叠为一个父节点，逐层递归直到只剩一个
//
//	      +-------+
//	      |   R   |
//	      +-------+
//	     /    |    \
//	+----+ +----+ +----+
//	| P1 | | P2 | | P3 |
//	+----+ +----+ +----+
//	 /|\    /|\    /|
//	 ...    ...    ..
func balanced(ctx context.Context, src Source, reduce Reducer, opts Options) ([]core.Descriptor, error) {
	var level []core.Descriptor
	for {
		group, done, err := batch(ctx, src, opts.MaxChildrenPerNode)
		if err != nil {
			return nil, err
		}
		if len(group) > 0 {
			parent, err := reduce(ctx, group)
			if err != nil {
				return nil, err
			}
			level = append(level, parent)
		}
		if done {
			break
		}
	}

	// 上一层的输出作为新的叶子流继续折叠
	for len(level) > 1 {
		next := make([]core.Descriptor, 0, (len(level)+opts.MaxChildrenPerNode-1)/opts.MaxChildrenPerNode)
		for start := 0; start < len(level); start += opts.MaxChildrenPerNode {
			end := min(start+opts.MaxChildrenPerNode, len(level))
			parent, err := reduce(ctx, level[start:end])
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		level = next
	}
	return level, nil
}
