package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/storage/memory"
)

// -----------------------------------------------------------------------------
// SpyStore (间谍存储)
// 用于统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyStore struct {
	*memory.Store
	hasCount atomic.Int32
	putCount atomic.Int32
}

func NewSpyStore() *SpyStore {
	return &SpyStore{Store: memory.New()}
}

func (s *SpyStore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	s.hasCount.Add(1)
	return s.Store.Has(ctx, c)
}

func (s *SpyStore) Put(ctx context.Context, blk core.Block) error {
	s.putCount.Add(1)
	return s.Store.Put(ctx, blk)
}

func mustBlock(t *testing.T, data string) core.Block {
	t.Helper()
	n, err := core.NewRawNode([]byte(data), core.DefaultCidBuilder)
	require.NoError(t, err)
	return n
}

func TestCachedStore_DegradesWithoutRedis(t *testing.T) {
	// 指向一个不可达的地址，所有 Redis 调用都会失败
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	spy := NewSpyStore()
	store := newCachedStore(spy, client, time.Minute)
	defer store.Close()

	ctx := context.Background()
	blk := mustBlock(t, "degraded")

	// 1. Put 仍然写入底层
	require.NoError(t, store.Put(ctx, blk))
	assert.Equal(t, int32(1), spy.putCount.Load())

	// 2. Has 退化为直接查询底层
	ok, err := store.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.True(t, ok)

	// 3. Get 透传
	rc, err := store.Get(ctx, blk.Cid())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "degraded", string(data))

	_, err = store.Get(ctx, mustBlock(t, "missing").Cid())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedStore_DataCacheDegrades(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	spy := NewSpyStore()
	store := newCachedStore(spy, client, time.Minute)
	store.maxData = 4
	defer store.Close()

	ctx := context.Background()
	for _, content := range []string{"tiny", "larger than the limit"} {
		blk := mustBlock(t, content)
		require.NoError(t, spy.Store.Put(ctx, blk))

		rc, err := store.Get(ctx, blk.Cid())
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, content, string(data))
	}
}

func TestNewCachedStore_BadURL(t *testing.T) {
	_, err := NewCachedStore(NewSpyStore(), Config{RedisURL: "not-a-url"})
	assert.Error(t, err)
}

func TestCachedStore_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化
	ctx := context.Background()
	spy := NewSpyStore()
	cachedStore, err := NewCachedStore(spy, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      1 * time.Hour,
	})
	require.NoError(t, err)
	defer cachedStore.Close()

	// 清理 Redis (防止上次测试残留)
	cachedStore.client.FlushDB(ctx)

	blk := mustBlock(t, "cached block")

	// --- Step 1: Cache Miss ---
	exists, err := cachedStore.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(1), spy.hasCount.Load(), "Backend Has() should be called on miss")

	// --- Step 2: Put (Write-Through) ---
	require.NoError(t, cachedStore.Put(ctx, blk))
	assert.Equal(t, int32(1), spy.putCount.Load(), "Backend Put() should be called")

	redisVal, err := cachedStore.client.Exists(ctx, existsKey(blk.Cid())).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), redisVal, "Redis key should be set after Put")

	// --- Step 3: Cache Hit ---
	exists, err = cachedStore.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.True(t, exists)
	// Put 内部的预检算一次，命中后不再增加
	assert.Equal(t, int32(2), spy.hasCount.Load(), "Backend Has() should NOT be called on hit")

	// --- Step 4: 同一 multihash 的不同 CID 命中同一条缓存 ---
	v1 := cid.NewCidV1(cid.DagProtobuf, blk.Cid().Hash())
	exists, err = cachedStore.Has(ctx, v1)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(2), spy.hasCount.Load())
}

func TestCachedStore_Integration_BlockData(t *testing.T) {
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	ctx := context.Background()
	spy := NewSpyStore()
	store, err := NewCachedStore(spy, Config{
		RedisURL:     fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:          time.Hour,
		MaxBlockSize: 16,
	})
	require.NoError(t, err)
	defer store.Close()
	store.client.FlushDB(ctx)

	small := mustBlock(t, "small")
	big := mustBlock(t, "this block is over the limit")
	require.NoError(t, store.Put(ctx, small))
	require.NoError(t, store.Put(ctx, big))

	n, err := store.client.Exists(ctx, dataKey(small.Cid())).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = store.client.Exists(ctx, dataKey(big.Cid())).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	// 底层删掉后小块仍能从 Redis 读出
	spy.Store = memory.New()
	rc, err := store.Get(ctx, small.Cid())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "small", string(data))

	_, err = store.Get(ctx, big.Cid())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
