package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ufsvault/pkg/app"
	"ufsvault/pkg/client"
)

var pushFlags struct {
	preserveMode  bool
	preserveMtime bool
	quiet         bool
}

var pushCmd = &cobra.Command{
	Use:   "push [file]",
	Short: "Upload staged files (from the index) or a specific file to the server",
	Long: `If a file argument is provided, uploads that file. Otherwise every file in the staging area is uploaded.
Files the server already imported with the same SHA-256, metadata and import options are skipped without sending any data.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{noAppAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 获取连接 (Lazy)
		cli, err := GetRemoteClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		// 2. 分支逻辑
		if len(args) > 0 {
			return pushSingleFile(cmd.Context(), cmd, cli, args[0], filepath.Base(args[0]))
		}

		// 暂存区模式需要本地仓库
		if UFS == nil {
			UFS, err = app.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize ufsvault: %w", err)
			}
		}
		return pushStagedFiles(cmd.Context(), cmd, cli)
	},
}

// pushStagedFiles 遍历 Index 并上传
func pushStagedFiles(ctx context.Context, cmd *cobra.Command, cli *client.Client) error {
	out := cmd.OutOrStdout()
	if UFS.Index.IsEmpty() {
		fmt.Fprintln(out, "Nothing to push (index is empty). Run 'ufs add <path>' first.")
		return nil
	}

	paths := UFS.Index.Paths()
	slices.Sort(paths)
	fmt.Fprintf(out, "Pushing %d files from the staging area...\n", len(paths))

	success, failures := 0, 0
	for _, rel := range paths {
		abs := filepath.Join(UFS.WorkDir(), filepath.FromSlash(rel))

		// Index 里有但磁盘上已经删除
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			fmt.Fprintf(out, "%s: skipped (missing on disk)\n", rel)
			failures++
			continue
		}

		if err := pushSingleFile(ctx, cmd, cli, abs, rel); err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", rel, err)
			failures++
			continue
		}
		success++
	}

	fmt.Fprintf(out, "\nSummary: %d succeeded, %d failed.\n", success, failures)
	if failures > 0 {
		return fmt.Errorf("%d files failed to upload", failures)
	}
	return nil
}

func pushSingleFile(ctx context.Context, cmd *cobra.Command, cli *client.Client, path, name string) error {
	opts := client.UploadOptions{
		Name:          name,
		PreserveMode:  pushFlags.preserveMode,
		PreserveMtime: pushFlags.preserveMtime,
	}
	if !pushFlags.quiet {
		bar := newBytesBar(cmd.ErrOrStderr(), totalSize(path), name)
		defer bar.Finish()
		opts.Progress = bar
	}

	res, err := cli.UploadFile(ctx, path, opts)
	if err != nil {
		return err
	}
	reportUpload(cmd.OutOrStdout(), name, res)
	return nil
}

func reportUpload(w io.Writer, name string, res *client.UploadResult) {
	if res.Skipped {
		fmt.Fprintf(w, "%s: instant %s\n", name, res.Cid)
		return
	}
	fmt.Fprintf(w, "%s: uploaded %s (%s)\n", name, res.Cid, humanize.IBytes(res.FileSize))
}

func init() {
	rootCmd.AddCommand(pushCmd)
	f := pushCmd.Flags()
	f.BoolVar(&pushFlags.preserveMode, "preserve-mode", false, "send file permissions")
	f.BoolVar(&pushFlags.preserveMtime, "preserve-mtime", false, "send file modification times")
	f.BoolVarP(&pushFlags.quiet, "quiet", "q", false, "no progress bar")
}
