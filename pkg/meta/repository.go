package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ufsvault/pkg/core"
	"ufsvault/pkg/types"
)

var (
	ErrRefNotFound      = errors.New("reference not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrSnapshotNotFound = errors.New("snapshot not found in metadata")
)

// first 查询单条记录，未命中时返回 notFound
func first[T any](ctx context.Context, db *gorm.DB, notFound error, query string, args ...any) (*T, error) {
	var v T
	err := db.WithContext(ctx).Where(query, args...).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// isUniqueViolation 兼容 PG (TranslateError) 与 SQLite 的唯一约束错误
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// limited limit <= 0 表示不限制
func limited(q *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return q.Limit(limit)
	}
	return q
}

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 引用管理 (Refs)
// -----------------------------------------------------------------------------

// GetRef 获取引用的当前指向 (例如 "HEAD" -> cid)
func (r *Repository) GetRef(ctx context.Context, name string) (*Ref, error) {
	return first[Ref](ctx, r.db.GetConn(), ErrRefNotFound, "name = ?", name)
}

// UpdateRef 原子更新引用 (CAS - Compare And Swap)
// oldVersion: 之前读到的版本号，0 表示创建。版本不匹配时返回 ErrConcurrentUpdate。
func (r *Repository) UpdateRef(ctx context.Context, name string, target cid.Cid, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 场景 A: 第一次创建 (Create)
		if oldVersion == 0 {
			err := tx.Create(&Ref{Name: name, Cid: target.String(), Version: 1}).Error
			switch {
			case err == nil:
				return nil
			case isUniqueViolation(err):
				return ErrConcurrentUpdate
			default:
				return fmt.Errorf("failed to create ref: %w", err)
			}
		}

		// 场景 B: 更新现有引用
		// SQL: UPDATE refs SET cid = ?, version = version + 1 WHERE name = ? AND version = ?
		result := tx.Model(&Ref{}).
			Where("name = ? AND version = ?", name, oldVersion).
			Updates(map[string]any{
				"cid":        target.String(),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})

		if result.Error != nil {
			return result.Error
		}
		// 影响行数为 0，说明 version 不匹配
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. 快照索引
// -----------------------------------------------------------------------------

// IndexSnapshot 将 core.Snapshot 投影到 SQL 数据库中 (幂等)
func (r *Repository) IndexSnapshot(ctx context.Context, s *core.Snapshot) error {
	// 1. 转换 Parents (Link -> []string -> JSON)
	parents := make([]string, 0, len(s.Parents))
	for _, p := range s.Parents {
		parents = append(parents, p.Cid.String())
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	// 2. 构造 Model
	model := SnapshotModel{
		Cid:       s.Cid().String(),
		Author:    s.Author,
		Message:   s.Message,
		Timestamp: s.Timestamp,
		TreeCid:   s.Tree.Cid.String(),
		Parents:   datatypes.JSON(parentsJSON),
		CreatedAt: time.Unix(s.Timestamp, 0),
	}

	// 3. 幂等写入：主键已存在则什么都不做
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cid"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index snapshot: %w", err)
	}
	return nil
}

// GetSnapshot 按 CID 读取快照索引
func (r *Repository) GetSnapshot(ctx context.Context, c cid.Cid) (*SnapshotModel, error) {
	return first[SnapshotModel](ctx, r.db.GetConn(), ErrSnapshotNotFound, "cid = ?", c.String())
}

// FindSnapshotsByAuthor 最新的在前，limit <= 0 表示不限制
func (r *Repository) FindSnapshotsByAuthor(ctx context.Context, author string, limit int) ([]SnapshotModel, error) {
	q := r.db.GetConn().WithContext(ctx).
		Where("author = ?", author).
		Order("timestamp DESC")
	var snaps []SnapshotModel
	err := limited(q, limit).Find(&snaps).Error
	return snaps, err
}

// -----------------------------------------------------------------------------
// 3. 导入记录
// -----------------------------------------------------------------------------

// RecordImport 写入一条导入记录，(root_cid, path) 已存在时忽略
func (r *Repository) RecordImport(ctx context.Context, rec *ImportRecord) error {
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}, {Name: "root_cid"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to record import of %s: %w", rec.Path, err)
	}
	return nil
}

// ListImports 最近的导入在前，limit <= 0 表示不限制
func (r *Repository) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	var recs []ImportRecord
	err := limited(r.db.GetConn().WithContext(ctx).Order("id DESC"), limit).Find(&recs).Error
	return recs, err
}

// FindImportByLinearHash 查找内容和参数都相同的导入，未命中返回 (nil, nil)
// paramsKey 来自 ImportParams.Key，参数不同的导入得到的根 CID 不同，不能复用
func (r *Repository) FindImportByLinearHash(ctx context.Context, h types.LinearHash, paramsKey string) (*ImportRecord, error) {
	// First 按主键升序，即最早的一次导入
	return first[ImportRecord](ctx, r.db.GetConn(), nil,
		"linear_hash = ? AND params_key = ?", h.String(), paramsKey)
}
