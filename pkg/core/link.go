package core

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// Link 代表 DAG-CBOR 对象里指向另一个块的引用
// 在 CBOR 层面，它会被序列化为 Tag 42(0x00 + CID bytes)
type Link struct {
	Cid cid.Cid
}

const (
	linkTagNumber = 42
)

// NewLink 辅助函数
func NewLink(c cid.Cid) Link {
	return Link{Cid: c}
}

// MarshalCBOR 规范：Tag 42, Content = [0x00, cid bytes...]
func (l Link) MarshalCBOR() ([]byte, error) {
	// 1. 未定义的 CID 不允许出现在链接中
	if !l.Cid.Defined() {
		return nil, fmt.Errorf("invalid link: undefined cid")
	}

	// 2. 添加 Multibase Identity 前缀 (0x00)
	cidBytes := append([]byte{0x00}, l.Cid.Bytes()...)

	// 3. 包装为 Tag 42
	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: cidBytes,
	})
}

// UnmarshalCBOR 实现自定义反序列化逻辑
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}
	c, err := LinkFromTag(tag)
	if err != nil {
		return err
	}
	l.Cid = c
	return nil
}

// LinkFromTag 从 CBOR Tag 42 中取出 CID
func LinkFromTag(tag cbor.Tag) (cid.Cid, error) {
	// 1. 校验 Tag Number
	if tag.Number != linkTagNumber {
		return cid.Undef, fmt.Errorf("expected tag 42 for Link, got %d", tag.Number)
	}

	// 2. 获取内容字节
	bytes, ok := tag.Content.([]byte)
	if !ok {
		return cid.Undef, fmt.Errorf("link content must be byte string")
	}

	// 3. 严格校验 Multibase 前缀
	if len(bytes) < 1 {
		return cid.Undef, fmt.Errorf("invalid link: empty content")
	}
	if bytes[0] != 0x00 {
		return cid.Undef, fmt.Errorf("invalid link: missing 0x00 multibase prefix")
	}

	// 4. 还原 CID
	c, err := cid.Cast(bytes[1:])
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid link: %w", err)
	}
	return c, nil
}
