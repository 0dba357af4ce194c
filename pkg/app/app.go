package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"ufsvault/pkg/config"
	"ufsvault/pkg/core"
	"ufsvault/pkg/exporter"
	"ufsvault/pkg/index"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/meta"
	"ufsvault/pkg/refs"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/storage/cache"
	"ufsvault/pkg/storage/disk"
	"ufsvault/pkg/storage/memory"
	"ufsvault/pkg/storage/s3"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务
type App struct {
	Store storage.Store
	Index *index.Index
	Meta  *meta.Repository
	Refs  *refs.Manager

	// Options 来自配置的默认导入参数，命令行可以覆盖
	Options ingester.Options

	RepoPath string

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 仓库根路径：块目录的上一层，即 .ufs
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	repoPath := filepath.Dir(storePath)

	// 2. 导入参数
	opts, err := config.ImporterOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid importer config: %w", err)
	}

	a := &App{Options: opts, RepoPath: repoPath}

	// 3. 存储层
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	// 4. 元数据库
	db, err := meta.NewDB(ctx, metaConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init metadata db: %w", err)
	}
	a.closers = append(a.closers, db)
	a.Meta = meta.NewRepository(db)
	a.Refs = refs.NewManager(a.Meta)

	// 5. 暂存区
	idx, err := index.NewIndex(filepath.Join(repoPath, "index.json"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	a.Index = idx

	return a, nil
}

// initStore 按 storage.type 创建存储后端，配置了 cache.redis_url 时外面再包一层缓存
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var backend storage.Store

	switch t := viper.GetString("storage.type"); t {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "blocks")
		}
		comp, err := disk.ParseCompression(viper.GetString("storage.compression"))
		if err != nil {
			return nil, err
		}
		adapter, err := disk.NewAdapter(path, disk.WithCompression(comp))
		if err != nil {
			return nil, err
		}
		backend = adapter

	case "s3":
		cfg := s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		}
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required")
		}
		adapter, err := s3.NewAdapter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend = adapter

	case "memory":
		backend = memory.New()

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}

	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return backend, nil
	}
	cached, err := cache.NewCachedStore(backend, cache.Config{
		RedisURL:     redisURL,
		TTL:          viper.GetDuration("cache.ttl"),
		MaxBlockSize: viper.GetInt("cache.max_block_size"),
	})
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func metaConfig() meta.Config {
	return meta.Config{
		Driver:   viper.GetString("database.driver"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
	}
}

// GetExporter 读取路径共用同一个存储
func (a *App) GetExporter() *exporter.Exporter {
	return exporter.NewExporter(a.Store)
}

// CidBuilder 目录和文件使用同一套 CID 参数
func (a *App) CidBuilder() core.CidBuilder {
	b, err := core.NewCidBuilder(a.Options.CidVersion, a.Options.HashAlg)
	if err != nil {
		// Options 在 NewApp 中已经校验过
		return core.DefaultCidBuilder
	}
	return b
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
