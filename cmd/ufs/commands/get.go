package commands

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ufsvault/pkg/app"
	"ufsvault/pkg/exporter"
)

var getStage bool

var getCmd = &cobra.Command{
	Use:   "get [cid[/path]] [dir]",
	Short: "Restore a file or directory tree to disk",
	Long: `Write the file or directory at the given path to the target (default: the last path segment).
A snapshot CID restores the snapshot's tree. With --stage the restored files are also staged.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		start := time.Now()

		// 1. 快照对象自动切换到其目录树
		src := args[0]
		exp := UFS.GetExporter()
		en, err := exp.Resolve(ctx, src)
		if err != nil {
			return err
		}
		if en.Kind == exporter.KindObject {
			src = strings.TrimSuffix(src, "/") + "/tree"
		}

		target := defaultTarget(args[0])
		if len(args) > 1 {
			target = args[1]
		}

		// 2. 还原，每个文件可选写回暂存区
		var files int
		var total uint64
		var stageErr error
		onRestore := func(p string, en *exporter.Entry) {
			files++
			total += en.Size
			if getStage && stageErr == nil {
				rel, err := stageKey(p)
				if err != nil {
					stageErr = err
					return
				}
				UFS.Index.Add(rel, en.Cid, en.CumulativeSize(), en.Size)
			}
		}
		if err := exp.RestoreTree(ctx, src, target, onRestore); err != nil {
			return fmt.Errorf("get failed: %w", err)
		}
		if stageErr != nil {
			return stageErr
		}

		if getStage {
			if err := UFS.Index.Save(); err != nil {
				return fmt.Errorf("failed to update index: %w", err)
			}
		}

		fmt.Fprintf(out, "Restored %d files (%s) to %s in %s\n", files, humanize.IBytes(total), target, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// stageKey 暂存区的键是相对于工作区根目录的路径
func stageKey(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(UFS.WorkDir(), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cannot stage %s: %w", p, app.ErrOutsideRepo)
	}
	return filepath.ToSlash(rel), nil
}

// defaultTarget 取路径的最后一段
func defaultTarget(p string) string {
	p = strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/ipfs/")
	return path.Base(p)
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getStage, "stage", false, "stage the restored files in the index")
}
