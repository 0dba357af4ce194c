// Package cache Redis 装饰器：缓存块的存在性，小块连同内容一起缓存
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/redis/go-redis/v9"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
)

const (
	existsPrefix = "ufs:blk:"
	dataPrefix   = "ufs:dat:"

	fillTimeout = 2 * time.Second
)

// Config 缓存配置
type Config struct {
	// RedisURL redis://<user>:<password>@<host>:<port>/<db>
	RedisURL string
	TTL      time.Duration

	// MaxBlockSize 不超过该大小的块把内容也放进 Redis，0 表示只缓存存在性
	MaxBlockSize int
}

// CachedStore 包装任意 storage.Store
// Redis 不可用时所有操作退化为直接访问底层存储
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration
	maxData int
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// 启动时连不上直接报错，运行中的故障才降级
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := newCachedStore(backend, client, cfg.TTL)
	s.maxData = cfg.MaxBlockSize
	return s, nil
}

func newCachedStore(backend storage.Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{backend: backend, client: client, ttl: ttl}
}

// 以 multihash 为键，CIDv0 / CIDv1 命中同一条缓存
func existsKey(c cid.Cid) string { return existsPrefix + storage.Key(c) }
func dataKey(c cid.Cid) string   { return dataPrefix + storage.Key(c) }

// markExists 在后台写入存在性标记，不受调用方 ctx 取消影响
func (s *CachedStore) markExists(c cid.Cid) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fillTimeout)
		defer cancel()
		if err := s.client.Set(ctx, existsKey(c), 1, s.ttl).Err(); err != nil {
			slog.Debug("redis back-fill failed", "cid", c, "error", err)
		}
	}()
}

// Has 先查 Redis，未命中再查底层并回填
func (s *CachedStore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	n, err := s.client.Exists(ctx, existsKey(c)).Result()
	switch {
	case err != nil:
		slog.Warn("redis exists failed, falling back to backend", "cid", c, "error", err)
	case n > 0:
		return true, nil
	}

	found, err := s.backend.Has(ctx, c)
	if err != nil {
		return false, err
	}
	if found {
		s.markExists(c)
	}
	return found, nil
}

// Put 已知存在的块直接跳过，写入底层成功后才记缓存
func (s *CachedStore) Put(ctx context.Context, blk core.Block) error {
	exists, err := s.Has(ctx, blk.Cid())
	if err != nil || exists {
		return err
	}

	if err := s.backend.Put(ctx, blk); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, existsKey(blk.Cid()), 1, s.ttl)
	if s.cacheable(len(blk.RawData())) {
		pipe.Set(ctx, dataKey(blk.Cid()), blk.RawData(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Debug("redis set failed", "cid", blk.Cid(), "error", err)
	}
	return nil
}

func (s *CachedStore) cacheable(size int) bool {
	return s.maxData > 0 && size <= s.maxData
}

// Get 小块优先从 Redis 返回，大块透传到底层
func (s *CachedStore) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if s.maxData <= 0 {
		return s.backend.Get(ctx, c)
	}

	data, err := s.client.Get(ctx, dataKey(c)).Bytes()
	switch {
	case err == nil:
		return io.NopCloser(bytes.NewReader(data)), nil
	case !errors.Is(err, redis.Nil):
		slog.Warn("redis get failed, falling back to backend", "cid", c, "error", err)
	}

	rc, err := s.backend.Get(ctx, c)
	if err != nil {
		return nil, err
	}

	// 多读一个字节就能判断是否超过上限
	head, err := io.ReadAll(io.LimitReader(rc, int64(s.maxData)+1))
	if err != nil {
		rc.Close()
		return nil, err
	}
	if !s.cacheable(len(head)) {
		return &prefixedReadCloser{Reader: io.MultiReader(bytes.NewReader(head), rc), Closer: rc}, nil
	}
	rc.Close()

	if err := s.client.Set(ctx, dataKey(c), head, s.ttl).Err(); err != nil {
		slog.Debug("redis data fill failed", "cid", c, "error", err)
	}
	return io.NopCloser(bytes.NewReader(head)), nil
}

// prefixedReadCloser 已读出的前缀 + 剩余的底层流
type prefixedReadCloser struct {
	io.Reader
	io.Closer
}

// Close 关闭 Redis 连接，底层存储可关闭时一并关闭
func (s *CachedStore) Close() error {
	err := s.client.Close()
	if c, ok := s.backend.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
