package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/types"
)

// FrameSize Add 流每帧携带的数据量
const FrameSize = 64 * 1024

// UploadOptions 控制一次上传
type UploadOptions struct {
	// Name 服务端记录的路径，为空时取文件名
	Name string

	PreserveMode  bool
	PreserveMtime bool

	Import *ufsrpc.ImportOptions

	// Progress 接收已发送的字节 (可以是进度条)
	Progress io.Writer
}

// UploadResult 上传结果，Skipped 表示服务端已有相同内容
type UploadResult struct {
	Cid      string
	Size     uint64
	FileSize uint64
	Skipped  bool
}

// UploadFile 先计算 SHA-256 做秒传检查，未命中再走 Add 流
func (c *Client) UploadFile(ctx context.Context, path string, opts UploadOptions) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	// 1. 线性哈希
	hasher := types.NewLinearHasher()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	sum := hasher.Sum()

	// 2. 元数据，秒传检查和 Add 使用同一份
	name := opts.Name
	if name == "" {
		name = filepath.Base(path)
	}
	meta := &ufsrpc.FileMeta{Path: name, Sha256: sum.String(), Options: opts.Import}
	if opts.PreserveMode {
		m := uint32(info.Mode().Perm())
		meta.Mode = &m
	}
	if opts.PreserveMtime {
		secs := info.ModTime().Unix()
		meta.MtimeSecs = &secs
		meta.MtimeNsecs = uint32(info.ModTime().Nanosecond())
	}

	// 3. 秒传检查：内容、元数据和导入参数都一致才复用已有的根
	chk, err := c.Data.Check(ctx, &ufsrpc.CheckRequest{
		Sha256:     meta.Sha256,
		Size:       info.Size(),
		Mode:       meta.Mode,
		MtimeSecs:  meta.MtimeSecs,
		MtimeNsecs: meta.MtimeNsecs,
		Options:    meta.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("check failed: %w", err)
	}
	if chk.Exists {
		return &UploadResult{Cid: chk.Cid, FileSize: uint64(info.Size()), Skipped: true}, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	stream, err := c.Data.Add(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload stream: %w", err)
	}
	if err := stream.Send(&ufsrpc.AddRequest{Meta: meta}); err != nil {
		return nil, fmt.Errorf("failed to send metadata: %w", closeWithError(stream, err))
	}

	// 4. 元数据帧 + 数据帧
	var src io.Reader = f
	if opts.Progress != nil {
		src = io.TeeReader(f, opts.Progress)
	}
	buf := make([]byte, FrameSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := stream.Send(&ufsrpc.AddRequest{Chunk: buf[:n]}); err != nil {
				return nil, fmt.Errorf("failed to send chunk: %w", closeWithError(stream, err))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, err
	}
	return &UploadResult{Cid: resp.Cid, Size: resp.Size, FileSize: resp.FileSize}, nil
}

// closeWithError Send 返回 io.EOF 时真正的错误要从 CloseAndRecv 取
func closeWithError(stream interface {
	CloseAndRecv() (*ufsrpc.AddResponse, error)
}, err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	if _, rerr := stream.CloseAndRecv(); rerr != nil {
		return rerr
	}
	return err
}

// CatTo 把服务端的文件内容 (或其中一段) 写入 w
// length 为负数表示读到结尾
func (c *Client) CatTo(ctx context.Context, path string, w io.Writer, offset, length int64) (int64, error) {
	req := &ufsrpc.CatRequest{Path: path, Offset: offset}
	if length >= 0 {
		req.Length = &length
	}

	stream, err := c.Data.Cat(ctx, req)
	if err != nil {
		return 0, err
	}

	var total int64
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(resp.Chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}
