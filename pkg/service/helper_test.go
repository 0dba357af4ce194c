package service

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/app"
	"ufsvault/pkg/core"
	"ufsvault/pkg/index"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/meta"
	"ufsvault/pkg/refs"
	"ufsvault/pkg/storage/memory"
	"ufsvault/pkg/treebuilder"
	"ufsvault/pkg/types"
)

// setupTestApp 是所有 Service 测试共享的基础设施初始化逻辑
func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	tmpDir := t.TempDir()
	repoPath := filepath.Join(tmpDir, ".ufs")
	require.NoError(t, os.MkdirAll(repoPath, 0o755))

	// 1. Index
	idx, err := index.NewIndex(filepath.Join(repoPath, "index.json"))
	require.NoError(t, err)

	// 2. DB & Meta
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.Models()...))
	t.Cleanup(func() { metaDB.Close() })

	repo := meta.NewRepository(metaDB)

	return &app.App{
		Store:    memory.New(),
		Index:    idx,
		Meta:     repo,
		Refs:     refs.NewManager(repo),
		Options:  ingester.DefaultOptions(),
		RepoPath: repoPath,
	}
}

// startServer 在 bufconn 上启动注册了两个服务的 gRPC 服务端
func startServer(t *testing.T, application *app.App) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer()
	ufsrpc.RegisterDataServiceServer(srv, NewDataService(application))
	ufsrpc.RegisterMetaServiceServer(srv, NewMetaService(application))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// mustIngest 直接通过 Ingester 写入一个文件
func mustIngest(t *testing.T, application *app.App, data []byte, opts ingester.Options) cid.Cid {
	t.Helper()
	ing, err := ingester.NewIngester(application.Store, opts)
	require.NoError(t, err)
	d, err := ing.IngestFile(context.Background(), bytes.NewReader(data), ingester.FileMeta{Path: "test"})
	require.NoError(t, err)
	return d.Cid
}

// randomData 生成可复现的伪随机数据
func randomData(n int) []byte {
	b := make([]byte, n)
	x := uint32(2463534242)
	for i := range b {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b[i] = byte(x)
	}
	return b
}

func sha(data []byte) string {
	return types.LinearHashOf(data).String()
}

// plainKey 不带元数据、使用服务端默认参数时的导入参数键
func plainKey(application *app.App) string {
	return app.ImportParamsOf(application.Options, ingester.FileMeta{}).Key()
}

func descriptorOf(c cid.Cid, fileSize uint64) core.Descriptor {
	return core.Descriptor{Cid: c, FileSize: fileSize}
}

// buildDir 把上传结果组成一个目录并写入存储
func buildDir(t *testing.T, application *app.App, files map[string]*ufsrpc.AddResponse) cid.Cid {
	t.Helper()
	idx := index.NewMemoryIndex()
	for name, r := range files {
		c, err := cid.Decode(r.Cid)
		require.NoError(t, err)
		idx.Add("dir/"+name, c, r.Size, r.FileSize)
	}
	res, err := treebuilder.NewBuilder(application.Store, application.CidBuilder()).Build(context.Background(), idx, false)
	require.NoError(t, err)
	return res.Root
}
