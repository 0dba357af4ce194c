package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RepoDir 仓库元数据目录名
const RepoDir = ".ufs"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.ufs -> ~/.ufs
		viper.AddConfigPath(".")
		viper.AddConfigPath(RepoDir)
		viper.AddConfigPath(filepath.Join(home, RepoDir))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (UFS_STORAGE_TYPE 等)
	viper.SetEnvPrefix("UFS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，格式错误才算
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and env vars")
	} else {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	wd, _ := os.Getwd()
	repo := filepath.Join(wd, RepoDir)

	// 存储默认值
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(repo, "blocks"))
	viper.SetDefault("storage.compression", "none")
	viper.SetDefault("storage.s3.region", "us-east-1")

	// 缓存
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.max_block_size", 16<<10) // 中间节点和快照通常远小于此

	// 数据库默认值
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", filepath.Join(repo, "meta.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 导入参数
	setImporterDefaults()

	// 服务
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("remote.addr", "localhost:8080")

	// 快照作者
	viper.SetDefault("user.name", "ufsvault user")

	// 日志
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
