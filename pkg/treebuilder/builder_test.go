package treebuilder

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
	"ufsvault/pkg/index"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/storage/memory"
	"ufsvault/pkg/unixfs"
)

// stage 导入一个文件并登记到暂存区
func stage(t *testing.T, ing *ingester.Ingester, idx *index.Index, p, content string) core.Descriptor {
	t.Helper()
	d, err := ing.IngestFile(context.Background(), bytes.NewReader([]byte(content)), ingester.FileMeta{Path: p})
	require.NoError(t, err)
	idx.Add(p, d.Cid, d.Size, d.FileSize)
	return d
}

func fixtureIndex(t *testing.T, store storage.Store) *index.Index {
	t.Helper()
	ing, err := ingester.NewIngester(store, ingester.DefaultOptions())
	require.NoError(t, err)

	// 构造一个结构:
	// a
	//  └── b
	//       ├── c/d/e  "banana"
	//       ├── c/d/f  "strawberry"
	//       ├── g      "ice"
	//       └── h      "cream"
	idx := index.NewMemoryIndex()
	banana := stage(t, ing, idx, "a/b/c/d/e", "banana")
	assert.Equal(t, "QmYPbDKwc7oneCcEc6BcRSN5GXthTGWUCd19bTCyP9u3vH", banana.Cid.String())
	assert.Equal(t, uint64(14), banana.Size)
	stage(t, ing, idx, "a/b/c/d/f", "strawberry")
	stage(t, ing, idx, "a/b/g", "ice")
	stage(t, ing, idx, "a/b/h", "cream")
	return idx
}

func TestBuild_NestedDirectories(t *testing.T) {
	store := memory.New()
	idx := fixtureIndex(t, store)

	res, err := NewBuilder(store, core.DefaultCidBuilder).Build(context.Background(), idx, false)
	require.NoError(t, err)

	assert.Equal(t, "QmdCrquDwd7RfZ6GCZFEVADwe8uyyw1YmF9mtAB7etDgmK", res.Root.String())
	assert.Equal(t, uint64(375), res.Size)

	// 自底向上: d, c, b, a
	want := []struct {
		path string
		cid  string
		size uint64
	}{
		{"a/b/c/d", "QmQGDXr3ysARM38n7h79Tx7yD3YxuzcnZ1naG71WMojPoj", 122},
		{"a/b/c", "QmYTVcjYpN3hQLtJstCPE8hhEacAYjWAuTmmAAXoonamuE", 169},
		{"a/b", "QmWyWYxq1GD9fEyckf5LrJv8hMW35CwfWwzDBp8bTw3NQj", 327},
		{"a", "QmdCrquDwd7RfZ6GCZFEVADwe8uyyw1YmF9mtAB7etDgmK", 375},
	}
	require.Len(t, res.Dirs, len(want))
	for i, w := range want {
		assert.Equal(t, w.path, res.Dirs[i].Path)
		assert.Equal(t, w.cid, res.Dirs[i].Cid.String())
		assert.Equal(t, w.size, res.Dirs[i].Size)

		ok, err := store.Has(context.Background(), res.Dirs[i].Cid)
		require.NoError(t, err)
		assert.True(t, ok, "directory %s should be persisted", w.path)
	}
}

func TestBuild_DirectoryLinksSorted(t *testing.T) {
	store := memory.New()
	idx := fixtureIndex(t, store)

	res, err := NewBuilder(store, core.DefaultCidBuilder).Build(context.Background(), idx, false)
	require.NoError(t, err)

	blk, err := storage.GetBlock(context.Background(), store, res.Dirs[2].Cid)
	require.NoError(t, err)
	node, err := core.DecodeProtoNode(blk.Cid(), blk.RawData())
	require.NoError(t, err)

	rec, err := node.UnixFS()
	require.NoError(t, err)
	assert.Equal(t, unixfs.TDirectory, rec.Type)

	var names []string
	for _, l := range node.Links {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"c", "g", "h"}, names)
}

func TestBuild_WrapWithDirectory(t *testing.T) {
	store := memory.New()
	idx := fixtureIndex(t, store)

	res, err := NewBuilder(store, core.DefaultCidBuilder).Build(context.Background(), idx, true)
	require.NoError(t, err)

	require.Len(t, res.Dirs, 5)
	wrapper := res.Dirs[4]
	assert.Equal(t, "", wrapper.Path)
	assert.Equal(t, res.Root, wrapper.Cid)

	blk, err := storage.GetBlock(context.Background(), store, res.Root)
	require.NoError(t, err)
	node, err := core.DecodeProtoNode(res.Root, blk.RawData())
	require.NoError(t, err)
	link, ok := node.FindLink("a")
	require.True(t, ok)
	assert.Equal(t, "QmdCrquDwd7RfZ6GCZFEVADwe8uyyw1YmF9mtAB7etDgmK", link.Cid.String())
	assert.Equal(t, uint64(375), link.Tsize)
}

func TestBuild_MultipleRootsWithoutWrap(t *testing.T) {
	store := memory.New()
	idx := fixtureIndex(t, store)
	idx.Add("other", mustCid(t, "QmYPbDKwc7oneCcEc6BcRSN5GXthTGWUCd19bTCyP9u3vH"), 14, 6)

	_, err := NewBuilder(store, core.DefaultCidBuilder).Build(context.Background(), idx, false)
	assert.ErrorIs(t, err, ErrMultipleRoots)
}

func TestBuild_SingleFileIsItsOwnRoot(t *testing.T) {
	banana := mustCid(t, "QmYPbDKwc7oneCcEc6BcRSN5GXthTGWUCd19bTCyP9u3vH")
	idx := index.NewMemoryIndex()
	idx.Add("e", banana, 14, 6)

	res, err := NewBuilder(memory.New(), core.DefaultCidBuilder).Build(context.Background(), idx, false)
	require.NoError(t, err)
	assert.Equal(t, banana, res.Root)
	assert.Equal(t, uint64(14), res.Size)
	assert.Empty(t, res.Dirs)
}

func TestBuild_OnlyHash(t *testing.T) {
	store := memory.New()
	idx := fixtureIndex(t, store)
	before := store.Len()

	res, err := NewBuilder(nil, core.DefaultCidBuilder).Build(context.Background(), idx, false)
	require.NoError(t, err)
	assert.Equal(t, "QmdCrquDwd7RfZ6GCZFEVADwe8uyyw1YmF9mtAB7etDgmK", res.Root.String())
	assert.Equal(t, before, store.Len())
}

func TestBuild_Errors(t *testing.T) {
	b := NewBuilder(memory.New(), core.DefaultCidBuilder)
	c := mustCid(t, "QmYPbDKwc7oneCcEc6BcRSN5GXthTGWUCd19bTCyP9u3vH")

	t.Run("empty", func(t *testing.T) {
		_, err := b.Build(context.Background(), index.NewMemoryIndex(), true)
		assert.ErrorIs(t, err, ErrEmptyIndex)
	})

	t.Run("file and directory collide", func(t *testing.T) {
		idx := index.NewMemoryIndex()
		idx.Add("x", c, 14, 6)
		idx.Add("x/y", c, 14, 6)
		_, err := b.Build(context.Background(), idx, true)
		assert.ErrorIs(t, err, ErrPathConflict)
	})

	t.Run("canceled", func(t *testing.T) {
		idx := index.NewMemoryIndex()
		idx.Add("x/y", c, 14, 6)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Build(ctx, idx, true)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func mustCid(t *testing.T, s string) cid.Cid {
	t.Helper()
	c, err := cid.Decode(s)
	require.NoError(t, err)
	return c
}
