package ingester

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/storage/memory"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

func randomData(seed int64, n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func mustIngester(t *testing.T, store storage.Store, opts Options) *Ingester {
	t.Helper()
	ing, err := NewIngester(store, opts)
	require.NoError(t, err)
	return ing
}

func mustIngest(t *testing.T, ing *Ingester, data []byte, meta FileMeta) core.Descriptor {
	t.Helper()
	root, err := ing.IngestFile(context.Background(), bytes.NewReader(data), meta)
	require.NoError(t, err)
	return root
}

// readBack 递归拼接整棵树的数据，用于校验顺序
func readBack(t *testing.T, s storage.Store, c cid.Cid) []byte {
	t.Helper()
	blk, err := storage.GetBlock(context.Background(), s, c)
	require.NoError(t, err)

	if c.Type() == cid.Raw {
		return blk.RawData()
	}
	node, err := core.DecodeProtoNode(c, blk.RawData())
	require.NoError(t, err)
	rec, err := node.UnixFS()
	require.NoError(t, err)

	out := append([]byte(nil), rec.Data...)
	for _, l := range node.Links {
		out = append(out, readBack(t, s, l.Cid)...)
	}
	return out
}

func decodeRoot(t *testing.T, s storage.Store, c cid.Cid) *core.ProtoNode {
	t.Helper()
	blk, err := storage.GetBlock(context.Background(), s, c)
	require.NoError(t, err)
	node, err := core.DecodeProtoNode(c, blk.RawData())
	require.NoError(t, err)
	return node
}

// jitterStore 随机延迟写入，打乱并发完成顺序
type jitterStore struct {
	*memory.Store
	mu  sync.Mutex
	rng *rand.Rand
}

func newJitterStore() *jitterStore {
	return &jitterStore{Store: memory.New(), rng: rand.New(rand.NewSource(42))}
}

func (j *jitterStore) Put(ctx context.Context, blk core.Block) error {
	j.mu.Lock()
	d := time.Duration(j.rng.Intn(300)) * time.Microsecond
	j.mu.Unlock()
	time.Sleep(d)
	return j.Store.Put(ctx, blk)
}

// failingStore 第 n 次写入开始失败
type failingStore struct {
	*memory.Store
	mu    sync.Mutex
	after int
	err   error
}

func (f *failingStore) Put(ctx context.Context, blk core.Block) error {
	f.mu.Lock()
	f.after--
	fail := f.after < 0
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Store.Put(ctx, blk)
}

