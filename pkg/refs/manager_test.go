package refs

import (
	"context"
	"fmt"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ufsvault/pkg/meta"
)

// setupTestEnv 搭建基于内存 SQLite 的测试环境
func setupTestEnv(t *testing.T) *Manager {
	// 每个测试独立的共享内存实例
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&meta.Ref{}))

	return NewManager(meta.NewRepository(meta.NewWithConn(db)))
}

func mockCid(t *testing.T, s string) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte(s), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, sum)
}

func TestRefFlow_Lifecycle(t *testing.T) {
	mgr := setupTestEnv(t)
	ctx := context.Background()

	// 1. 初始状态应该是 NoHead
	_, _, err := mgr.GetHead(ctx)
	assert.ErrorIs(t, err, ErrNoHead, "空仓库应该返回 ErrNoHead")

	// 2. 第一次快照 (oldVersion 传 0)
	s1 := mockCid(t, "v1")
	require.NoError(t, mgr.UpdateHead(ctx, s1, 0), "首次 UpdateHead 应该成功")

	// 3. 验证读取
	got, ver, err := mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1, got)
	assert.Equal(t, int64(1), ver, "第一次版本号应该是 1")

	// 4. 基于版本 1 更新
	s2 := mockCid(t, "v2")
	require.NoError(t, mgr.UpdateHead(ctx, s2, 1), "基于正确版本的更新应该成功")

	got, ver, err = mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, s2, got)
	assert.Equal(t, int64(2), ver, "版本号应该递增为 2")
}

func TestRefFlow_OptimisticLocking(t *testing.T) {
	mgr := setupTestEnv(t)
	ctx := context.Background()

	// 1. 初始化到版本 1
	require.NoError(t, mgr.UpdateHead(ctx, mockCid(t, "v1"), 0))
	_, ver, err := mgr.GetHead(ctx)
	require.NoError(t, err)

	// 2. 用户 B 先基于版本 1 更新成功
	b := mockCid(t, "user_B")
	require.NoError(t, mgr.UpdateHead(ctx, b, ver), "用户 B 应该更新成功")

	// 3. 用户 A 拿着过期的版本号更新
	err = mgr.UpdateHead(ctx, mockCid(t, "user_A"), ver)
	assert.ErrorIs(t, err, ErrStaleHead, "使用过期的版本号更新应该被拒绝")

	// 4. 确保数据没有被覆盖
	curr, currVer, err := mgr.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, curr, "HEAD 应该保持为用户 B 的值")
	assert.Equal(t, int64(2), currVer)

	// 5. 重复创建同样被拒绝
	assert.ErrorIs(t, mgr.UpdateHead(ctx, b, 0), ErrStaleHead)
}
