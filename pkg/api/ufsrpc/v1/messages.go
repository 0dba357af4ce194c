// Package ufsrpc 定义 ufsvault gRPC 服务的消息与服务描述
// 消息以 CBOR 编码传输 (见 codec.go)
package ufsrpc

import (
	"errors"
	"fmt"

	"ufsvault/pkg/types"
)

var ErrInvalidRequest = errors.New("invalid request")

// =============================================================================
// DataService
// =============================================================================

// CheckRequest 上传前的秒传检查
// 元数据和导入参数必须与随后 Add 的 FileMeta 一致，否则命中的根与上传结果不同
type CheckRequest struct {
	Sha256 string `cbor:"sha256"`
	Size   int64  `cbor:"size"`

	Mode       *uint32 `cbor:"mode,omitempty"`
	MtimeSecs  *int64  `cbor:"mtime,omitempty"`
	MtimeNsecs uint32  `cbor:"mtime_nsecs,omitempty"`

	Options *ImportOptions `cbor:"options,omitempty"`
}

func (r *CheckRequest) Validate() error {
	if !types.LinearHash(r.Sha256).IsValid() {
		return fmt.Errorf("%w: sha256 must be 64 lowercase hex characters", ErrInvalidRequest)
	}
	if r.Size < 0 {
		return fmt.Errorf("%w: size must be >= 0", ErrInvalidRequest)
	}
	return validateFileMeta(r.Mode, r.MtimeNsecs)
}

func validateFileMeta(mode *uint32, nsecs uint32) error {
	if mode != nil && *mode > 0o7777 {
		return fmt.Errorf("%w: mode %o out of range", ErrInvalidRequest, *mode)
	}
	if nsecs > 999_999_999 {
		return fmt.Errorf("%w: mtime nanoseconds out of range", ErrInvalidRequest)
	}
	return nil
}

type CheckResponse struct {
	Exists bool   `cbor:"exists"`
	Cid    string `cbor:"cid,omitempty"`
}

// ImportOptions 客户端可以覆盖的导入参数，空值表示沿用服务端配置
type ImportOptions struct {
	Strategy    string `cbor:"strategy,omitempty"`
	Chunker     string `cbor:"chunker,omitempty"`
	MaxChildren int    `cbor:"max_children,omitempty"`
	RawLeaves   *bool  `cbor:"raw_leaves,omitempty"`
	CidVersion  *int   `cbor:"cid_version,omitempty"`
}

// FileMeta Add 流的第一帧
type FileMeta struct {
	Path   string `cbor:"path"`
	Sha256 string `cbor:"sha256"`

	Mode       *uint32 `cbor:"mode,omitempty"`
	MtimeSecs  *int64  `cbor:"mtime,omitempty"`
	MtimeNsecs uint32  `cbor:"mtime_nsecs,omitempty"`

	Options *ImportOptions `cbor:"options,omitempty"`
}

func (m *FileMeta) Validate() error {
	if m.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}
	if !types.LinearHash(m.Sha256).IsValid() {
		return fmt.Errorf("%w: sha256 must be 64 lowercase hex characters", ErrInvalidRequest)
	}
	return validateFileMeta(m.Mode, m.MtimeNsecs)
}

// AddRequest 是 Add 流中的一帧：Meta 或 Chunk 二选一
type AddRequest struct {
	Meta  *FileMeta `cbor:"meta,omitempty"`
	Chunk []byte    `cbor:"chunk,omitempty"`
}

type AddResponse struct {
	Cid      string `cbor:"cid"`
	Size     uint64 `cbor:"size"`
	FileSize uint64 `cbor:"file_size"`
}

// CatRequest 读取文件内容，Length 为 nil 表示读到结尾
type CatRequest struct {
	Path   string `cbor:"path"`
	Offset int64  `cbor:"offset,omitempty"`
	Length *int64 `cbor:"length,omitempty"`
}

func (r *CatRequest) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}
	return nil
}

type CatResponse struct {
	Chunk []byte `cbor:"chunk"`
}

type StatRequest struct {
	Path string `cbor:"path"`
}

type StatResponse struct {
	Cid            string `cbor:"cid"`
	Kind           string `cbor:"kind"`
	Size           uint64 `cbor:"size"`
	CumulativeSize uint64 `cbor:"cumulative_size"`
	Mode           uint32 `cbor:"mode"`
	MtimeSecs      *int64 `cbor:"mtime,omitempty"`
	Links          int    `cbor:"links"`
}

type LsRequest struct {
	Path string `cbor:"path"`
}

type LsEntry struct {
	Name string `cbor:"name"`
	Cid  string `cbor:"cid"`
	Kind string `cbor:"kind"`
	Size uint64 `cbor:"size"`
}

type LsResponse struct {
	Entries []LsEntry `cbor:"entries"`
}

// =============================================================================
// MetaService
// =============================================================================

type GetHeadRequest struct{}

type GetHeadResponse struct {
	Exists  bool   `cbor:"exists"`
	Cid     string `cbor:"cid,omitempty"`
	Version int64  `cbor:"version"`
}

// SnapshotRequest 为已经上传的目录树创建快照
type SnapshotRequest struct {
	Tree    string   `cbor:"tree"`
	Parents []string `cbor:"parents,omitempty"`
	Author  string   `cbor:"author"`
	Message string   `cbor:"message"`
}

func (r *SnapshotRequest) Validate() error {
	if r.Tree == "" {
		return fmt.Errorf("%w: tree is required", ErrInvalidRequest)
	}
	if r.Author == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidRequest)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	return nil
}

type SnapshotResponse struct {
	Cid string `cbor:"cid"`
}
