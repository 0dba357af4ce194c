package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ufsvault/pkg/app"
	"ufsvault/pkg/client"
	"ufsvault/pkg/config"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	UFS *app.App
)

// noAppAnnotation 标记不需要本地仓库的命令
const noAppAnnotation = "ufs/no-app"

var rootCmd = &cobra.Command{
	Use:           "ufs",
	Short:         "ufsvault: UnixFS content-addressed file vault",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := config.SetupLogger(cmd.ErrOrStderr()); err != nil {
			return err
		}

		if _, ok := cmd.Annotations[noAppAnnotation]; ok || UFS != nil {
			return nil
		}

		var err error
		UFS, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize ufsvault: %w\n(Did you run 'ufs init'?)", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if UFS == nil {
			return nil
		}
		err := UFS.Close()
		UFS = nil
		return err
	},
}

// Execute 是入口
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.ufs/config.yaml or $HOME/.ufs/config.yaml)")

	// 用户既可以在 yaml 里写，也可以用参数覆盖
	flags.String("storage-path", "", "directory to store blocks")
	flags.String("storage-type", "", "block store backend (disk|s3|memory)")
	flags.String("remote", "", "ufsvault server address for push")
	flags.String("log-level", "", "log level (debug|info|warn|error)")

	for key, name := range map[string]string{
		"storage.path": "storage-path",
		"storage.type": "storage-type",
		"remote.addr":  "remote",
		"log.level":    "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}

// GetRemoteClient 按 remote.addr 创建客户端
func GetRemoteClient() (*client.Client, error) {
	addr := viper.GetString("remote.addr")
	if addr == "" {
		return nil, fmt.Errorf("no remote configured (use --remote or remote.addr)")
	}
	return client.New(addr)
}

// requireApp 确认全局 App 已经初始化
func requireApp() error {
	if UFS == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}
