package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
)

// -----------------------------------------------------------------------------
// 辅助工具：记录树形状的假 Reducer
// -----------------------------------------------------------------------------

type fakeTree struct {
	t        *testing.T
	children map[cid.Cid][]core.Descriptor
	calls    int
}

func newFakeTree(t *testing.T) *fakeTree {
	return &fakeTree{t: t, children: make(map[cid.Cid][]core.Descriptor)}
}

func mkCid(t *testing.T, s string) cid.Cid {
	t.Helper()
	c, err := core.DefaultCidBuilder.Sum(cid.Raw, []byte(s))
	require.NoError(t, err)
	return c
}

func (f *fakeTree) reduce(_ context.Context, group []core.Descriptor) (core.Descriptor, error) {
	if len(group) == 1 && group[0].Single {
		return group[0], nil
	}
	f.calls++
	c := mkCid(f.t, fmt.Sprintf("node-%d", f.calls))
	f.children[c] = slices.Clone(group)

	var size uint64
	for _, d := range group {
		size += d.FileSize
	}
	return core.Descriptor{Cid: c, FileSize: size}, nil
}

func (f *fakeTree) depth(d core.Descriptor) int {
	kids, ok := f.children[d.Cid]
	if !ok {
		return 0
	}
	deepest := 0
	for _, k := range kids {
		deepest = max(deepest, f.depth(k))
	}
	return deepest + 1
}

// leaves 按从左到右的顺序返回叶子编号
func (f *fakeTree) leaves(d core.Descriptor) []int {
	kids, ok := f.children[d.Cid]
	if !ok {
		i, err := strconv.Atoi(d.Path)
		require.NoError(f.t, err)
		return []int{i}
	}
	var out []int
	for _, k := range kids {
		out = append(out, f.leaves(k)...)
	}
	return out
}

// maxLeafChildren 任意内部节点直接挂的叶子数的最大值
func (f *fakeTree) maxLeafChildren() int {
	most := 0
	for _, kids := range f.children {
		n := 0
		for _, k := range kids {
			if _, internal := f.children[k.Cid]; !internal {
				n++
			}
		}
		most = max(most, n)
	}
	return most
}

func makeLeaves(t *testing.T, n int) []core.Descriptor {
	leaves := make([]core.Descriptor, n)
	for i := range leaves {
		leaves[i] = core.Descriptor{
			Cid:      mkCid(t, fmt.Sprintf("leaf-%d", i)),
			FileSize: 1,
			Path:     strconv.Itoa(i),
		}
	}
	if n == 1 {
		leaves[0].Single = true
	}
	return leaves
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func mustBuild(t *testing.T, s Strategy, n int, opts Options) (*fakeTree, core.Descriptor) {
	t.Helper()
	ft := newFakeTree(t)
	root, err := s.Build(context.Background(), NewSliceSource(makeLeaves(t, n)), ft.reduce, opts)
	require.NoError(t, err)
	return ft, root
}

// -----------------------------------------------------------------------------
// 测试
// -----------------------------------------------------------------------------

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"flat", "balanced", "trickle"} {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}

	_, err := ParseStrategy("sideways")
	assert.ErrorIs(t, err, ErrBadStrategy)

	_, err = Strategy(99).Build(context.Background(), NewSliceSource(nil), nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrBadStrategy)
}

func TestBalanced_Depth(t *testing.T) {
	tests := []struct {
		n, b int
	}{
		{2, 2}, {3, 2}, {8, 2}, {9, 2}, {10, 3}, {27, 3}, {28, 3}, {174, 174}, {175, 174}, {500, 11},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,b=%d", tt.n, tt.b), func(t *testing.T) {
			ft, root := mustBuild(t, Balanced, tt.n, Options{MaxChildrenPerNode: tt.b, LayerRepeat: 4})

			// ceil(log_B n)
			want, capacity := 0, 1
			for capacity < tt.n {
				capacity *= tt.b
				want++
			}
			assert.Equal(t, want, ft.depth(root))
			assert.Equal(t, seq(tt.n), ft.leaves(root), "叶子顺序必须与输入一致")
			assert.Equal(t, uint64(tt.n), root.FileSize)
		})
	}
}

func TestAllStrategies_SingleLeaf(t *testing.T) {
	for _, s := range []Strategy{Balanced, Flat, Trickle} {
		t.Run(s.String(), func(t *testing.T) {
			ft, root := mustBuild(t, s, 1, DefaultOptions())
			assert.Equal(t, 0, ft.calls, "单叶子应该直接交给 reducer 折叠")
			assert.Equal(t, "0", root.Path)
		})
	}
}

func TestFlat(t *testing.T) {
	t.Run("fits in one node", func(t *testing.T) {
		ft, root := mustBuild(t, Flat, 5, Options{MaxChildrenPerNode: 5, LayerRepeat: 1})
		assert.Equal(t, 1, ft.calls)
		assert.Equal(t, 1, ft.depth(root))
		assert.Len(t, ft.children[root.Cid], 5)
	})

	t.Run("chains when too wide", func(t *testing.T) {
		ft, root := mustBuild(t, Flat, 12, Options{MaxChildrenPerNode: 5, LayerRepeat: 1})
		// 5 + 4 + 3(剩余): 每次链式折叠把上一个根放在第一个位置
		assert.Equal(t, 3, ft.calls)
		assert.Equal(t, seq(12), ft.leaves(root))
		for _, kids := range ft.children {
			assert.LessOrEqual(t, len(kids), 5)
		}
	})
}

func TestTrickle(t *testing.T) {
	t.Run("layer boundary at stream end stays shallow", func(t *testing.T) {
		ft, root := mustBuild(t, Trickle, 3, Options{MaxChildrenPerNode: 3, LayerRepeat: 2})
		assert.Equal(t, 1, ft.calls)
		assert.Equal(t, 1, ft.depth(root))
	})

	t.Run("one extra leaf opens a depth-1 subtree", func(t *testing.T) {
		ft, root := mustBuild(t, Trickle, 4, Options{MaxChildrenPerNode: 3, LayerRepeat: 2})
		assert.Equal(t, 2, ft.depth(root))
		kids := ft.children[root.Cid]
		require.Len(t, kids, 4)
		assert.Len(t, ft.children[kids[3].Cid], 1)
	})

	t.Run("shape", func(t *testing.T) {
		// B=2, R=2: 根 = 2 叶子 + 2 棵深度 1 子树 (各 2 叶子) + 深度 2 子树...
		ft, root := mustBuild(t, Trickle, 6, Options{MaxChildrenPerNode: 2, LayerRepeat: 2})
		kids := ft.children[root.Cid]
		require.Len(t, kids, 4)
		assert.Equal(t, []int{2, 3}, ft.leaves(kids[2]))
		assert.Equal(t, []int{4, 5}, ft.leaves(kids[3]))
		assert.Equal(t, 2, ft.depth(root))
	})

	for _, n := range []int{2, 17, 100, 1000} {
		t.Run(fmt.Sprintf("invariants n=%d", n), func(t *testing.T) {
			opts := Options{MaxChildrenPerNode: 4, LayerRepeat: 3}
			ft, root := mustBuild(t, Trickle, n, opts)
			assert.Equal(t, seq(n), ft.leaves(root))
			assert.LessOrEqual(t, ft.maxLeafChildren(), opts.MaxChildrenPerNode)
			assert.Equal(t, uint64(n), root.FileSize)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTree(t)

	t.Run("empty source", func(t *testing.T) {
		for _, s := range []Strategy{Balanced, Flat, Trickle} {
			_, err := s.Build(ctx, NewSliceSource(nil), ft.reduce, DefaultOptions())
			assert.ErrorIs(t, err, ErrNoRoot, s.String())
		}
	})

	t.Run("too many roots", func(t *testing.T) {
		_, err := singleRoot(makeLeaves(t, 2))
		assert.ErrorIs(t, err, ErrTooManyRoots)
	})

	t.Run("reducer error", func(t *testing.T) {
		boom := errors.New("boom")
		failing := func(context.Context, []core.Descriptor) (core.Descriptor, error) {
			return core.Descriptor{}, boom
		}
		for _, s := range []Strategy{Balanced, Flat, Trickle} {
			_, err := s.Build(ctx, NewSliceSource(makeLeaves(t, 5)), failing, DefaultOptions())
			assert.ErrorIs(t, err, boom, s.String())
		}
	})

	t.Run("source error", func(t *testing.T) {
		boom := errors.New("read failed")
		for _, s := range []Strategy{Balanced, Flat, Trickle} {
			_, err := s.Build(ctx, &failingSource{after: 3, err: boom}, ft.reduce, Options{MaxChildrenPerNode: 2, LayerRepeat: 1})
			assert.ErrorIs(t, err, boom, s.String())
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := Balanced.Build(ctx, NewSliceSource(nil), ft.reduce, Options{MaxChildrenPerNode: 1, LayerRepeat: 1})
		assert.Error(t, err)
	})
}

type failingSource struct {
	after int
	n     int
	err   error
}

func (f *failingSource) Next(context.Context) (core.Descriptor, error) {
	if f.n >= f.after {
		return core.Descriptor{}, f.err
	}
	f.n++
	return core.Descriptor{Path: strconv.Itoa(f.n), FileSize: 1}, nil
}

func TestPeekSource(t *testing.T) {
	ctx := context.Background()
	p := &peekSource{src: NewSliceSource(makeLeaves(t, 2))}

	more, err := p.more(ctx)
	require.NoError(t, err)
	assert.True(t, more)

	d, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", d.Path)

	_, err = p.Next(ctx)
	require.NoError(t, err)

	more, err = p.more(ctx)
	require.NoError(t, err)
	assert.False(t, more)

	_, err = p.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
