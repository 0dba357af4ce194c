package core

import (
	"github.com/ipfs/go-cid"

	"ufsvault/pkg/unixfs"
)

// Descriptor 是导入流水线中各阶段之间传递的工作单元，不会被持久化
type Descriptor struct {
	Cid cid.Cid

	// Size 是子树的累计编码大小 (用作父链接的 Tsize)
	Size uint64

	// FileSize 是子树代表的逻辑字节数
	FileSize uint64

	// Record 为 nil 表示 raw codec 叶子
	Record *unixfs.Record

	// Raw 保存 raw 叶子的原始数据，单叶子折叠重新包装时使用
	Raw []byte

	Path string

	// Single 标记整个文件只有这一个叶子
	Single bool
}

// IsRaw 是否为 raw codec 的叶子
func (d Descriptor) IsRaw() bool {
	return d.Record == nil
}
