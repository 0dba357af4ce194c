package core

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"ufsvault/pkg/unixfs"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockCid 生成一个合法的 CIDv1 (raw) 用于满足 Link 的格式要求
func mockCid(t *testing.T, input string) cid.Cid {
	t.Helper()
	c, err := DefaultCidBuilder.Sum(cid.Raw, []byte(input))
	require.NoError(t, err)
	return c
}

// mustFileLeaf 创建 UnixFS file 叶子节点
func mustFileLeaf(t *testing.T, content string) *ProtoNode {
	t.Helper()
	n, err := NewUnixFSNode(unixfs.NewFile([]byte(content)), nil, DefaultCidBuilder)
	require.NoError(t, err)
	return n
}

// mustNewSnapshot 创建 Snapshot，如果失败直接终止测试
func mustNewSnapshot(t *testing.T, tree cid.Cid, parents []cid.Cid, author, msg string, msgAndArgs ...any) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(tree, parents, author, msg)
	require.NoError(t, err, msgAndArgs...)
	return s
}

func linkTo(n *ProtoNode) DagLink {
	return DagLink{Cid: n.Cid(), Tsize: n.CumulativeSize()}
}
