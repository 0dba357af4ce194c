package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/refs"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/treebuilder"
)

// ErrNothingToSnapshot 暂存区为空
var ErrNothingToSnapshot = errors.New("nothing to snapshot, index is empty")

// SnapshotResult 一次快照的产物
type SnapshotResult struct {
	Snapshot *core.Snapshot
	Tree     treebuilder.Result
	Initial  bool
}

// Snapshot 把暂存区构建成目录树，生成快照并移动 HEAD
func (a *App) Snapshot(ctx context.Context, author, message string) (*SnapshotResult, error) {
	if a.Index.IsEmpty() {
		return nil, ErrNothingToSnapshot
	}

	// 1. 构建 Merkle Tree，快照总是包在一个无名根目录下
	tree, err := treebuilder.NewBuilder(a.Store, a.CidBuilder()).Build(ctx, a.Index, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}

	// 2. 父节点 (HEAD)
	var parents []cid.Cid
	head, headVersion, err := a.Refs.GetHead(ctx)
	switch {
	case err == nil:
		parents = []cid.Cid{head}
	case errors.Is(err, refs.ErrNoHead):
		// 第一次快照
	default:
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	// 3. 创建并存储快照对象
	snap, err := core.NewSnapshot(tree.Root, parents, author, message)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := a.Store.Put(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	if err := a.Meta.IndexSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	// 4. 移动 HEAD (CAS)
	if err := a.Refs.UpdateHead(ctx, snap.Cid(), headVersion); err != nil {
		return nil, fmt.Errorf("failed to update HEAD: %w", err)
	}

	// 5. 清空暂存区
	a.Index.Reset()
	if err := a.Index.Save(); err != nil {
		// 快照已经成功，只记录
		slog.Warn("failed to clear index", "error", err)
	}

	return &SnapshotResult{Snapshot: snap, Tree: tree, Initial: len(parents) == 0}, nil
}

// History 从 start 开始沿第一个父节点向前遍历快照
// start 未定义时从 HEAD 开始，没有 HEAD 时序列为空
func (a *App) History(ctx context.Context, start cid.Cid) iter.Seq2[*core.Snapshot, error] {
	return func(yield func(*core.Snapshot, error) bool) {
		current := start
		if !current.Defined() {
			head, _, err := a.Refs.GetHead(ctx)
			if errors.Is(err, refs.ErrNoHead) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to read HEAD: %w", err))
				return
			}
			current = head
		}

		for current.Defined() {
			blk, err := storage.GetBlock(ctx, a.Store, current)
			if err != nil {
				yield(nil, fmt.Errorf("failed to retrieve snapshot %s: %w", current, err))
				return
			}
			snap, err := core.DecodeSnapshot(current, blk.RawData())
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(snap, nil) {
				return
			}

			// 只跟随第一个父节点 (线性历史)
			if len(snap.Parents) > 0 {
				current = snap.Parents[0].Cid
			} else {
				current = cid.Undef
			}
		}
	}
}
