// Package index 暂存区：记录待写入下一个快照的文件及其根 CID
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
)

// formatVersion index.json 的格式版本
const formatVersion = 1

// Entry 一个已暂存的文件
type Entry struct {
	Path       string    `json:"path"`        // slash 相对路径 (如 "data/model.bin")
	Cid        string    `json:"cid"`         // 导入后的根 CID
	Size       uint64    `json:"size"`        // 子树累计编码大小 (父链接的 Tsize)
	FileSize   uint64    `json:"file_size"`   // 文件逻辑大小
	ModifiedAt time.Time `json:"modified_at"` // 暂存时间
}

// Root 解析 Cid 字段
func (e Entry) Root() (cid.Cid, error) {
	c, err := cid.Decode(e.Cid)
	if err != nil {
		return cid.Undef, fmt.Errorf("index entry %s has bad cid %q: %w", e.Path, e.Cid, err)
	}
	return c, nil
}

// fileFormat 落盘结构，条目按路径排序，便于 diff
type fileFormat struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Index 暂存区，所有方法并发安全
type Index struct {
	mu      sync.RWMutex
	path    string // 为空表示纯内存，Save 不做任何事
	entries map[string]Entry
}

// NewIndex 从 indexPath 加载暂存区，文件不存在时返回空暂存区
func NewIndex(indexPath string) (*Index, error) {
	idx := NewMemoryIndex()
	idx.path = indexPath

	data, err := os.ReadFile(indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("corrupted index file: %w", err)
	}
	if ff.Version != formatVersion {
		return nil, fmt.Errorf("unsupported index version %d", ff.Version)
	}
	for _, e := range ff.Entries {
		idx.entries[CleanPath(e.Path)] = e
	}
	return idx, nil
}

// NewMemoryIndex 不落盘的暂存区，用于一次性导入目录
func NewMemoryIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Add 暂存 path，已有记录会被覆盖
func (i *Index) Add(path string, c cid.Cid, size, fileSize uint64) {
	key := CleanPath(path)

	i.mu.Lock()
	i.entries[key] = Entry{
		Path:       key,
		Cid:        c.String(),
		Size:       size,
		FileSize:   fileSize,
		ModifiedAt: time.Now(),
	}
	i.mu.Unlock()
}

// Get 查找单条记录
func (i *Index) Get(path string) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[CleanPath(path)]
	return e, ok
}

// Remove 删除一条记录或整个目录前缀，返回删除的条数
func (i *Index) Remove(path string) int {
	key := CleanPath(path)

	i.mu.Lock()
	defer i.mu.Unlock()
	n := len(i.entries)
	maps.DeleteFunc(i.entries, func(p string, _ Entry) bool {
		return p == key || strings.HasPrefix(p, key+"/")
	})
	return n - len(i.entries)
}

// Reset 清空暂存区 (快照完成后调用)
func (i *Index) Reset() {
	i.mu.Lock()
	clear(i.entries)
	i.mu.Unlock()
}

// Len 当前条目数
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func (i *Index) IsEmpty() bool { return i.Len() == 0 }

// Snapshot 返回条目的副本
func (i *Index) Snapshot() map[string]Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return maps.Clone(i.entries)
}

// Paths 排序后的路径列表
func (i *Index) Paths() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Sorted(maps.Keys(i.entries))
}

// Save 先写临时文件再 rename，中途崩溃不会留下半个 index
func (i *Index) Save() error {
	if i.path == "" {
		return nil
	}

	i.mu.RLock()
	ff := fileFormat{Version: formatVersion, Entries: make([]Entry, 0, len(i.entries))}
	for _, p := range slices.Sorted(maps.Keys(i.entries)) {
		ff.Entries = append(ff.Entries, i.entries[p])
	}
	i.mu.RUnlock()

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(i.path), ".index-*")
	if err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	defer os.Remove(tmp.Name()) // rename 成功后是 no-op

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return os.Rename(tmp.Name(), i.path)
}

// CleanPath 统一为不带前导 "./" 或 "/" 的 slash 路径
func CleanPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
}
