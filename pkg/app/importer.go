package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/ignore"
	"ufsvault/pkg/index"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/meta"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/treebuilder"
	"ufsvault/pkg/types"
	"ufsvault/pkg/unixfs"
)

var (
	ErrNothingToAdd = errors.New("no files to add")
	ErrOutsideRepo  = errors.New("path is outside the repository")
)

// AddRequest 描述一次导入
type AddRequest struct {
	Path    string
	Options ingester.Options

	// 保留文件权限 / 修改时间到 UnixFS 元数据
	PreserveMode  bool
	PreserveMtime bool

	// Ignore 附加的忽略规则，在 .ufsignore 之后生效
	Ignore []string
}

// FileResult 单个文件的导入结果
type FileResult struct {
	// Path 相对于工作区根目录，也是暂存区中的键
	Path       string
	Cid        cid.Cid
	Size       uint64
	FileSize   uint64
	LinearHash types.LinearHash

	// Meta 写进根节点的元数据
	Meta ingester.FileMeta
}

// AddResult 整个导入的结果：文件列表 + 由它们组成的目录 DAG 根
type AddResult struct {
	Files []FileResult
	Root  cid.Cid
	Size  uint64
	Dirs  []treebuilder.DirResult
}

// WorkDir 工作区根目录 (仓库目录的上一层)
func (a *App) WorkDir() string {
	return filepath.Dir(a.RepoPath)
}

// AddPath 导入一个文件或目录
// 非 OnlyHash 模式下，每个文件都会写入暂存区并记录到元数据库
func (a *App) AddPath(ctx context.Context, req AddRequest) (*AddResult, error) {
	// 1. 路径归一化
	target, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	stage := !req.Options.OnlyHash
	if stage {
		if _, err := a.stagePath(target); err != nil {
			return nil, err
		}
	}

	// 2. 准备导入器
	var store storage.Store
	if !req.Options.OnlyHash {
		store = a.Store
	}
	ing, err := ingester.NewIngester(store, req.Options)
	if err != nil {
		return nil, err
	}

	ignoreRoot := target
	if !info.IsDir() {
		ignoreRoot = filepath.Dir(target)
	}
	matcher, err := ignore.NewMatcher(ignoreRoot, req.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	// 本次导入自己的目录结构，键相对于 target 的父目录，顶层条目即 target 本身
	local := index.NewMemoryIndex()
	base := filepath.Dir(target)
	res := &AddResult{}

	// 3. 遍历
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(ignoreRoot, path)
		if err != nil {
			return err
		}
		if matcher.Matches(rel) {
			slog.Debug("ignored", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("skipping non-regular file", "path", path, "type", d.Type().String())
			return nil
		}

		fr, err := a.addFile(ctx, ing, path, req)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		localKey, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		local.Add(localKey, fr.Cid, fr.Size, fr.FileSize)

		if stage {
			if err := a.stageFile(ctx, fr, req.Options); err != nil {
				return err
			}
		}
		res.Files = append(res.Files, fr)
		return nil
	}

	if err := filepath.WalkDir(target, walkFn); err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}
	if len(res.Files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToAdd, req.Path)
	}

	// 4. 目录 DAG
	tree, err := treebuilder.NewBuilder(store, ing.CidBuilder()).Build(ctx, local, req.Options.WrapWithDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory tree: %w", err)
	}
	res.Root = tree.Root
	res.Size = tree.Size
	res.Dirs = tree.Dirs

	// 5. 暂存区落盘
	if stage {
		if err := a.Index.Save(); err != nil {
			return nil, fmt.Errorf("failed to save index: %w", err)
		}
	}
	return res, nil
}

// addFile 导入单个文件，同时计算原始内容的 SHA-256
func (a *App) addFile(ctx context.Context, ing *ingester.Ingester, path string, req AddRequest) (FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileResult{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return FileResult{}, err
	}

	key := path
	if !req.Options.OnlyHash {
		if key, err = a.stagePath(path); err != nil {
			return FileResult{}, err
		}
	}

	fm := ingester.FileMeta{Path: key}
	if req.PreserveMode {
		m := uint32(stat.Mode().Perm())
		fm.Mode = &m
	}
	if req.PreserveMtime {
		mt := stat.ModTime()
		fm.Mtime = &unixfs.Mtime{Secs: mt.Unix(), Nsecs: uint32(mt.Nanosecond())}
	}

	hasher := types.NewLinearHasher()
	d, err := ing.IngestFile(ctx, io.TeeReader(f, hasher), fm)
	if err != nil {
		return FileResult{}, err
	}

	return FileResult{
		Path:       key,
		Cid:        d.Cid,
		Size:       d.Size,
		FileSize:   d.FileSize,
		LinearHash: hasher.Sum(),
		Meta:       fm,
	}, nil
}

// stageFile 写入暂存区与导入记录
func (a *App) stageFile(ctx context.Context, fr FileResult, opts ingester.Options) error {
	a.Index.Add(fr.Path, fr.Cid, fr.Size, fr.FileSize)
	d := core.Descriptor{Cid: fr.Cid, Size: fr.Size, FileSize: fr.FileSize}
	return a.RecordImport(ctx, fr.Path, d, fr.LinearHash, ImportParamsOf(opts, fr.Meta))
}

// RecordImport 记录一次导入，Meta 未配置时跳过
func (a *App) RecordImport(ctx context.Context, path string, d core.Descriptor, h types.LinearHash, params meta.ImportParams) error {
	if a.Meta == nil {
		return nil
	}
	rec := &meta.ImportRecord{
		Path:       path,
		RootCid:    d.Cid.String(),
		Size:       d.Size,
		FileSize:   d.FileSize,
		LinearHash: h.String(),
	}
	if err := rec.SetParams(params); err != nil {
		return err
	}
	return a.Meta.RecordImport(ctx, rec)
}

// ImportOptionsOf 导入参数中需要随记录保存的部分
func ImportOptionsOf(o ingester.Options) meta.ImportOptions {
	return meta.ImportOptions{
		Strategy:    o.Strategy.String(),
		Chunker:     o.Chunker,
		MaxChildren: o.MaxChildrenPerNode,
		LayerRepeat: o.LayerRepeat,
		RawLeaves:   o.RawLeaves,
		LeafType:    o.LeafType.String(),
		ReduceLeaf:  o.ReduceSingleLeafToSelf,
		CidVersion:  o.CidVersion,
		HashAlg:     o.HashAlg,
	}
}

// ImportParamsOf 导入参数加上文件元数据，两者一起决定根 CID
func ImportParamsOf(o ingester.Options, fm ingester.FileMeta) meta.ImportParams {
	p := meta.ImportParams{Options: ImportOptionsOf(o), Mode: fm.Mode}
	if fm.Mtime != nil {
		secs := fm.Mtime.Secs
		p.MtimeSecs = &secs
		p.MtimeNsecs = fm.Mtime.Nsecs
	}
	return p
}

// stagePath 把绝对路径转换为暂存区的键
func (a *App) stagePath(abs string) (string, error) {
	rel, err := filepath.Rel(a.WorkDir(), abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, abs)
	}
	return index.CleanPath(rel), nil
}
