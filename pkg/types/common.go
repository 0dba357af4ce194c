// pkg/types/common.go
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
)

// LinearHash 是文件原始字节的 SHA-256 (Hex String)
// 与 DAG 的 CID 不同，它与切分方式和布局无关，用于秒传和上传校验。
type LinearHash string

func (h LinearHash) String() string { return string(h) }
func (h LinearHash) IsZero() bool   { return h == "" }

// IsValid 64 位小写 hex
func (h LinearHash) IsValid() bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// LinearHashOf 计算一段字节的 LinearHash
func LinearHashOf(data []byte) LinearHash {
	sum := sha256.Sum256(data)
	return LinearHash(hex.EncodeToString(sum[:]))
}

// LinearHasher 流式计算 LinearHash
type LinearHasher struct {
	h hash.Hash
}

func NewLinearHasher() *LinearHasher {
	return &LinearHasher{h: sha256.New()}
}

func (l *LinearHasher) Write(p []byte) (int, error) { return l.h.Write(p) }

func (l *LinearHasher) Sum() LinearHash {
	return LinearHash(hex.EncodeToString(l.h.Sum(nil)))
}

// ParseMode 解析八进制权限字符串 ("644" / "0755" / "0o600")
// 只接受低 12 位 (含 setuid/setgid/sticky)
func ParseMode(s string) (uint32, error) {
	if len(s) > 2 && (s[:2] == "0o" || s[:2] == "0O") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	if v > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q: out of range", s)
	}
	return uint32(v), nil
}

// FormatMode 以 4 位八进制输出
func FormatMode(m uint32) string {
	return fmt.Sprintf("%04o", m)
}
