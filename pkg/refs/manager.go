package refs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"ufsvault/pkg/meta"
)

const HeadRef = "HEAD"

var (
	ErrNoHead    = errors.New("HEAD not found (clean repo)")
	ErrStaleHead = errors.New("HEAD was moved by someone else, reload and retry")
)

// Manager 负责管理引用 (Refs)，目前主要是 HEAD
// 引用保存在元数据库中，依赖版本号做乐观锁
type Manager struct {
	repo *meta.Repository
}

func NewManager(repo *meta.Repository) *Manager {
	return &Manager{repo: repo}
}

// GetHead 读取当前快照的 CID 和版本号
// 如果是新仓库 (没有快照)，返回 ErrNoHead
func (m *Manager) GetHead(ctx context.Context) (cid.Cid, int64, error) {
	ref, err := m.repo.GetRef(ctx, HeadRef)
	if errors.Is(err, meta.ErrRefNotFound) {
		return cid.Undef, 0, ErrNoHead
	}
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("failed to read HEAD: %w", err)
	}

	c, err := cid.Decode(ref.Cid)
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("HEAD holds an invalid cid %q: %w", ref.Cid, err)
	}
	return c, ref.Version, nil
}

// UpdateHead 把 HEAD 移到新的快照，oldVersion 为 0 表示首次创建
func (m *Manager) UpdateHead(ctx context.Context, c cid.Cid, oldVersion int64) error {
	err := m.repo.UpdateRef(ctx, HeadRef, c, oldVersion)
	if errors.Is(err, meta.ErrConcurrentUpdate) {
		return ErrStaleHead
	}
	return err
}
