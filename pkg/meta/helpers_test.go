package meta

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/core"
)

// mockCid 生成合法的测试用 CID
func mockCid(t *testing.T, input string) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte(input), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV0(sum)
}

// mustNewSnapshot 创建 Snapshot，如果失败直接终止测试
func mustNewSnapshot(t *testing.T, tree cid.Cid, parents []cid.Cid, author, msg string, msgAndArgs ...any) *core.Snapshot {
	t.Helper()
	s, err := core.NewSnapshot(tree, parents, author, msg)
	require.NoError(t, err, msgAndArgs...)
	return s
}

// mustIndexSnapshot 强制索引 Snapshot，失败则终止
func mustIndexSnapshot(t *testing.T, repo *Repository, s *core.Snapshot, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.IndexSnapshot(context.Background(), s), msgAndArgs...)
}

// mustUpdateRef 强制更新引用，失败则终止
func mustUpdateRef(t *testing.T, repo *Repository, name string, target cid.Cid, oldVersion int64, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.UpdateRef(context.Background(), name, target, oldVersion), msgAndArgs...)
}
