package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ufsvault/pkg/config"
)

var initCmd = &cobra.Command{
	Use:         "init [dir]",
	Short:       "Initialize a ufsvault repository",
	Long:        `Create an empty ufsvault repository (.ufs) in the given directory or the current one.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{noAppAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 确定工作区
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			wd, err = filepath.Abs(args[0])
			if err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()

		// 2. 仓库路径 (.ufs) 与块目录
		repoPath := filepath.Join(wd, config.RepoDir)
		blocksPath := filepath.Join(repoPath, "blocks")

		// 3. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Fprintf(out, "ufsvault repository already exists in %s\n", repoPath)
			return nil
		}

		// 4. 创建目录结构
		if err := os.MkdirAll(blocksPath, 0o755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		fmt.Fprintf(out, "Initialized empty ufsvault repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
