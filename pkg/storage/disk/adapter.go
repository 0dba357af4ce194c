package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
)

// Compression 块文件的压缩方式
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"

	zstdSuffix = ".zst"
)

// ParseCompression 空字符串视为 none
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none or zstd)", s)
	}
}

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath    string // 比如: /home/user/.ufs/blocks
	compression Compression
	encoder     *zstd.Encoder
}

// Option 配置 Adapter
type Option func(*Adapter)

// WithCompression 新写入的块使用指定压缩；读取总是兼容两种格式
func WithCompression(c Compression) Option {
	return func(a *Adapter) { a.compression = c }
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string, opts ...Option) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	a := &Adapter{rootPath: root, compression: CompressionNone}
	for _, opt := range opts {
		opt(a)
	}
	if a.compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		a.encoder = enc
	}
	return a, nil
}

// layout 返回块对应的物理路径
// 策略：使用 key 的倒数第 3、2 个字符作为子目录 (Sharding)
// key 的前缀在同一种哈希下都是相同的，尾部分布更均匀
func (s *Adapter) layout(c cid.Cid) string {
	key := storage.Key(c)
	if len(key) < 3 {
		return filepath.Join(s.rootPath, key)
	}
	return filepath.Join(s.rootPath, key[len(key)-3:len(key)-1], key)
}

// locate 找到已存在的块文件，返回路径和是否压缩
func (s *Adapter) locate(c cid.Cid) (string, bool, error) {
	plain := s.layout(c)
	for _, candidate := range []struct {
		path       string
		compressed bool
	}{{plain, false}, {plain + zstdSuffix, true}} {
		_, err := os.Stat(candidate.path)
		if err == nil {
			return candidate.path, candidate.compressed, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, err
		}
	}
	return "", false, storage.ErrNotFound
}

func (s *Adapter) Put(ctx context.Context, blk core.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 1. 检查是否存在 (幂等性)
	if _, _, err := s.locate(blk.Cid()); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	targetPath := s.layout(blk.Cid())
	data := blk.RawData()
	if s.compression == CompressionZstd {
		targetPath += zstdSuffix
		data = s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	// 2. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 3. 原子写入：先写临时文件，再 Rename
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// 4. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, compressed, err := s.locate(c)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !compressed {
		return f, nil
	}

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open zstd stream for %s: %w", c, err)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

func (s *Adapter) Has(ctx context.Context, c cid.Cid) (bool, error) {
	_, _, err := s.locate(c)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Close 释放压缩器
func (s *Adapter) Close() error {
	if s.encoder != nil {
		return s.encoder.Close()
	}
	return nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
