// Package unixfs 实现 UnixFS Data 记录的二进制编解码 (protobuf wire format)
package unixfs

import (
	"errors"
	"fmt"
)

// Type 是 UnixFS 节点类型标签，数值与 wire format 中的枚举一致
type Type int32

const (
	TRaw       Type = 0
	TDirectory Type = 1
	TFile      Type = 2
	TMetadata  Type = 3
	TSymlink   Type = 4
	THAMTShard Type = 5
)

const (
	DefaultFileMode uint32 = 0o644
	DefaultDirMode  uint32 = 0o755

	// 低 12 位是 POSIX 权限位 (含 setuid/setgid/sticky)
	permMask uint32 = 0xFFF
)

var (
	ErrBadNodeType = errors.New("unixfs: unrecognized node type")
	ErrMalformed   = errors.New("unixfs: malformed record")
)

var typeNames = map[Type]string{
	TRaw:       "raw",
	TDirectory: "directory",
	TFile:      "file",
	TMetadata:  "metadata",
	TSymlink:   "symlink",
	THAMTShard: "hamt-sharded-directory",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType 把名字 (file / raw / directory ...) 转回 Type
func ParseType(name string) (Type, error) {
	for t, s := range typeNames {
		if s == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadNodeType, name)
}

// Mtime 修改时间，纳秒部分为 0 时不写入 wire
type Mtime struct {
	Secs  int64
	Nsecs uint32
}

// Record 是一个 UnixFS 节点解码后的元数据
//
// FileSize 不单独存储：它总是由 len(Data) + Σ Blocksizes 推导出来，
// 这样 size invariant 在内存中天然成立。
type Record struct {
	Type       Type
	Data       []byte
	Blocksizes []uint64

	// 仅 HAMT 分片目录使用，本包只负责透传
	HashType *uint64
	Fanout   *uint64

	Mtime *Mtime

	// nil 表示从未设置 (读取时返回类型默认值)，非 nil 时即使等于默认值也会被编码
	mode *uint32
}

// New 创建指定类型的空记录
func New(t Type) *Record {
	return &Record{Type: t}
}

// NewFile 创建带内联数据的 file 叶子记录
func NewFile(data []byte) *Record {
	return &Record{Type: TFile, Data: data}
}

func (r *Record) IsDirectory() bool {
	return r.Type == TDirectory || r.Type == THAMTShard
}

// FileSize 返回该节点代表的逻辑字节长度
func (r *Record) FileSize() uint64 {
	if r.IsDirectory() {
		return 0
	}
	size := uint64(len(r.Data))
	for _, b := range r.Blocksizes {
		size += b
	}
	return size
}

// AddBlockSize 追加一个子节点贡献的逻辑长度
func (r *Record) AddBlockSize(size uint64) {
	r.Blocksizes = append(r.Blocksizes, size)
}

// RemoveBlockSize 删除第 i 个子节点的长度记录
func (r *Record) RemoveBlockSize(i int) {
	r.Blocksizes = append(r.Blocksizes[:i], r.Blocksizes[i+1:]...)
}

func (r *Record) defaultMode() uint32 {
	if r.IsDirectory() {
		return DefaultDirMode
	}
	return DefaultFileMode
}

// Mode 返回有效权限位：显式设置过则返回设置值，否则返回类型默认值
func (r *Record) Mode() uint32 {
	if r.mode != nil {
		return *r.mode
	}
	return r.defaultMode()
}

// HasMode 报告 mode 是否被显式设置 (包括显式设置为 0)
func (r *Record) HasMode() bool {
	return r.mode != nil
}

// SetMode 只替换低 12 位权限，保留解码时带来的高位 (文件类型位等)
func (r *Record) SetMode(m uint32) {
	var high uint32
	if r.mode != nil {
		high = *r.mode &^ permMask
	}
	v := high | (m & permMask)
	r.mode = &v
}

// ClearMode 恢复为 "未设置" 状态
func (r *Record) ClearMode() {
	r.mode = nil
}

// Clone 深拷贝，调用方可以安全修改副本
func (r *Record) Clone() *Record {
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	if r.Blocksizes != nil {
		c.Blocksizes = append([]uint64(nil), r.Blocksizes...)
	}
	if r.HashType != nil {
		v := *r.HashType
		c.HashType = &v
	}
	if r.Fanout != nil {
		v := *r.Fanout
		c.Fanout = &v
	}
	if r.Mtime != nil {
		v := *r.Mtime
		c.Mtime = &v
	}
	if r.mode != nil {
		v := *r.mode
		c.mode = &v
	}
	return &c
}

// hasFileSize 决定 filesize 字段是否写入 wire
func (r *Record) hasFileSize() bool {
	switch r.Type {
	case TFile, TMetadata, TSymlink:
		return true
	default:
		return false
	}
}
