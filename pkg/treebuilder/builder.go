package treebuilder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/index"
	"ufsvault/pkg/storage"
)

var (
	ErrEmptyIndex    = errors.New("treebuilder: nothing staged")
	ErrMultipleRoots = errors.New("treebuilder: more than one top-level entry, wrap with a directory")
	ErrPathConflict  = errors.New("treebuilder: path is both a file and a directory")
)

// DirResult 一个已写入的目录节点
type DirResult struct {
	Path string
	Cid  cid.Cid
	Size uint64 // 累计大小 = 编码长度 + Σ 子树大小
}

// Result Build 的输出。Dirs 按自底向上的写入顺序排列
type Result struct {
	Root cid.Cid
	Size uint64
	Dirs []DirResult
}

// Builder 负责将暂存区转换为 UnixFS 目录树
type Builder struct {
	store    storage.Store
	cids     core.CidBuilder
	onlyHash bool
}

// NewBuilder store 为 nil 时只计算 CID 不写入
func NewBuilder(store storage.Store, cids core.CidBuilder) *Builder {
	return &Builder{store: store, cids: cids, onlyHash: store == nil}
}

// Build 执行构建过程。wrap 为 true 时所有条目挂在一个无名根目录下，
// 否则只允许一个顶层条目，它本身就是根。
func (b *Builder) Build(ctx context.Context, idx *index.Index, wrap bool) (Result, error) {
	snapshot := idx.Snapshot()
	if len(snapshot) == 0 {
		return Result{}, ErrEmptyIndex
	}

	// 1. 构建内存中的目录树结构
	root := newDirNode("")
	for _, p := range slices.Sorted(maps.Keys(snapshot)) {
		if err := root.addFile(p, snapshot[p]); err != nil {
			return Result{}, err
		}
	}

	// 2. 根选择
	var res Result
	if !wrap {
		if len(root.children) > 1 {
			return Result{}, fmt.Errorf("%w: %d entries", ErrMultipleRoots, len(root.children))
		}
		for _, only := range root.children {
			root = only
		}
	}

	// 3. 自底向上计算 CID 并持久化
	link, err := b.writeNode(ctx, root, root.name, &res)
	if err != nil {
		return Result{}, err
	}
	res.Root = link.Cid
	res.Size = link.Tsize
	return res, nil
}

// -----------------------------------------------------------------------------
// 内部辅助结构：内存树节点
// -----------------------------------------------------------------------------

type node struct {
	name     string
	isDir    bool
	children map[string]*node
	entry    index.Entry
}

func newDirNode(name string) *node {
	return &node{
		name:     name,
		isDir:    true,
		children: make(map[string]*node),
	}
}

// addFile 将一个文件路径插入到内存树中
// 例如 p="a/b/c.txt" -> 递归创建 a, b, 然后在 b 下创建 c.txt
func (n *node) addFile(p string, entry index.Entry) error {
	parts := strings.Split(p, "/")
	current := n

	for _, part := range parts[:len(parts)-1] {
		child, exists := current.children[part]
		if !exists {
			child = newDirNode(part)
			current.children[part] = child
		}
		if !child.isDir {
			return fmt.Errorf("%w: %s", ErrPathConflict, p)
		}
		current = child
	}

	fileName := parts[len(parts)-1]
	if existing, ok := current.children[fileName]; ok && existing.isDir {
		return fmt.Errorf("%w: %s", ErrPathConflict, p)
	}
	current.children[fileName] = &node{name: fileName, entry: entry}
	return nil
}

// writeNode 递归地把内存节点转换为目录块
func (b *Builder) writeNode(ctx context.Context, n *node, dirPath string, res *Result) (core.DagLink, error) {
	if err := ctx.Err(); err != nil {
		return core.DagLink{}, err
	}

	// Base Case: 文件直接引用导入时得到的根
	if !n.isDir {
		c, err := n.entry.Root()
		if err != nil {
			return core.DagLink{}, err
		}
		return core.DagLink{Cid: c, Tsize: n.entry.Size}, nil
	}

	entries := make([]core.DirEntry, 0, len(n.children))
	for _, name := range slices.Sorted(maps.Keys(n.children)) {
		link, err := b.writeNode(ctx, n.children[name], path.Join(dirPath, name), res)
		if err != nil {
			return core.DagLink{}, err
		}
		entries = append(entries, core.DirEntry{Name: name, Link: link})
	}

	dir, err := core.NewDirectory(entries, nil, nil, b.cids)
	if err != nil {
		return core.DagLink{}, fmt.Errorf("failed to create directory %q: %w", dirPath, err)
	}
	if !b.onlyHash {
		if err := b.store.Put(ctx, dir); err != nil {
			return core.DagLink{}, fmt.Errorf("failed to store directory %q: %w", dirPath, err)
		}
	}

	size := dir.CumulativeSize()
	res.Dirs = append(res.Dirs, DirResult{Path: dirPath, Cid: dir.Cid(), Size: size})
	return core.DagLink{Cid: dir.Cid(), Tsize: size}, nil
}
