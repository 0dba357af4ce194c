package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"

	"ufsvault/pkg/core"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Store defines the interface for a content-addressed block backend.
// Implementations can be local disk, cloud storage, or in-memory storage.
type Store interface {
	// Put 将一个块持久化
	// 相同内容多次写入只会保留一份 (写一次语义)
	Put(ctx context.Context, blk core.Block) error

	// Get 根据 CID 读取原始数据
	// 返回 io.ReadCloser 以支持大块的流式读取
	Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error)

	// Has 检查块是否存在
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// Key 返回块在后端中的存储键：multihash 的 base32 multibase 编码
// 同一份字节在 CIDv0 / CIDv1 下共享同一个键
func Key(c cid.Cid) string {
	k, err := multibase.Encode(multibase.Base32, c.Hash())
	if err != nil {
		// Base32 是内置编码，不会失败
		panic(err)
	}
	return k
}

// GetBlock 读取整个块并校验哈希
func GetBlock(ctx context.Context, s Store, c cid.Cid) (core.Block, error) {
	rc, err := s.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %s: %w", c, err)
	}
	return core.NewBlockChecked(c, data)
}
