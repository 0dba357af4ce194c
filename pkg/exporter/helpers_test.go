package exporter

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
	"ufsvault/pkg/index"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/storage/memory"
	"ufsvault/pkg/treebuilder"
)

// countingStore 统计 Get 次数，用于确认只读取了需要的块
type countingStore struct {
	*memory.Store
	gets atomic.Int64
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New()}
}

func (s *countingStore) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, c)
}

func randomData(seed int64, n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func mustImport(t *testing.T, store *countingStore, data []byte, opts ingester.Options, meta ingester.FileMeta) core.Descriptor {
	t.Helper()
	ing, err := ingester.NewIngester(store, opts)
	require.NoError(t, err)
	d, err := ing.IngestFile(context.Background(), bytes.NewReader(data), meta)
	require.NoError(t, err)
	return d
}

func mustResolve(t *testing.T, exp *Exporter, path string) *Entry {
	t.Helper()
	en, err := exp.Resolve(context.Background(), path)
	require.NoError(t, err)
	return en
}

// readAll 收集 Content 的全部输出
func readAll(en *Entry, opts ...ContentOption) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range en.Content(context.Background(), opts...) {
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// fixtureFiles 嵌套目录夹具
var fixtureFiles = map[string]string{
	"a/b/c/d/e": "banana",
	"a/b/c/d/f": "strawberry",
	"a/b/g":     "ice",
	"a/b/h":     "cream",
}

const fixtureRoot = "QmdCrquDwd7RfZ6GCZFEVADwe8uyyw1YmF9mtAB7etDgmK"

// mustFixture 导入夹具文件并构建目录树，返回根 CID
func mustFixture(t *testing.T, store *countingStore) cid.Cid {
	t.Helper()
	ing, err := ingester.NewIngester(store, ingester.DefaultOptions())
	require.NoError(t, err)

	idx := index.NewMemoryIndex()
	for p, content := range fixtureFiles {
		d, err := ing.IngestFile(context.Background(), bytes.NewReader([]byte(content)), ingester.FileMeta{Path: p})
		require.NoError(t, err)
		idx.Add(p, d.Cid, d.Size, d.FileSize)
	}

	res, err := treebuilder.NewBuilder(store, ing.CidBuilder()).Build(context.Background(), idx, false)
	require.NoError(t, err)
	return res.Root
}
