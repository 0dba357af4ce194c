// Package memory 提供基于 map 的 Store，用于测试和只计算哈希的导入
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
)

type Store struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func New() *Store {
	return &Store{blocks: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, blk core.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := storage.Key(blk.Cid())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[key]; ok {
		return nil
	}
	s.blocks[key] = bytes.Clone(blk.RawData())
	return nil
}

func (s *Store) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blocks[storage.Key(c)]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Has(ctx context.Context, c cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[storage.Key(c)]
	return ok, nil
}

// Len 返回块数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
