package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ufsvault/pkg/app"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/layout"
)

// addFlags add 命令的参数，未显式给出的项沿用配置
var addFlags struct {
	strategy      string
	chunker       string
	maxChildren   int
	rawLeaves     bool
	cidVersion    int
	onlyHash      bool
	wrap          bool
	preserveMode  bool
	preserveMtime bool
	quiet         bool
	ignore        []string
}

var addCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Import a file or directory and stage it",
	Long: `Chunk the file (or every file under the directory, honoring .ufsignore) into a UnixFS DAG,
store the blocks and stage the result for the next snapshot. With --only-hash nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// 1. 组装导入参数
		opts, err := addOptions(cmd, UFS.Options)
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if !addFlags.quiet {
			bar = newBytesBar(cmd.ErrOrStderr(), totalSize(args[0]), "importing")
			opts.Progress = func(n int64, _ string) { _ = bar.Add64(n) }
		}

		// 2. 执行导入
		start := time.Now()
		res, err := UFS.AddPath(cmd.Context(), app.AddRequest{
			Path:          args[0],
			Options:       opts,
			PreserveMode:  addFlags.preserveMode,
			PreserveMtime: addFlags.preserveMtime,
			Ignore:        addFlags.ignore,
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		// 3. 输出
		var total uint64
		for _, f := range res.Files {
			fmt.Fprintf(out, "added %s %s\n", f.Cid, f.Path)
			total += f.FileSize
		}
		if len(res.Files) > 1 || opts.WrapWithDirectory {
			fmt.Fprintf(out, "root  %s\n", res.Root)
		}

		verb := "Staged"
		if opts.OnlyHash {
			verb = "Hashed"
		}
		fmt.Fprintf(out, "%s %d files (%s) in %s\n", verb, len(res.Files), humanize.IBytes(total), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// addOptions 把显式给出的参数覆盖到配置上
func addOptions(cmd *cobra.Command, base ingester.Options) (ingester.Options, error) {
	opts := base
	f := cmd.Flags()

	if f.Changed("strategy") {
		s, err := layout.ParseStrategy(addFlags.strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}
	if f.Changed("chunker") {
		opts.Chunker = addFlags.chunker
	}
	if f.Changed("max-children") {
		opts.MaxChildrenPerNode = addFlags.maxChildren
	}
	if f.Changed("raw-leaves") {
		opts.RawLeaves = addFlags.rawLeaves
	}
	if f.Changed("cid-version") {
		opts.CidVersion = addFlags.cidVersion
	}
	if f.Changed("only-hash") {
		opts.OnlyHash = addFlags.onlyHash
	}
	if f.Changed("wrap") {
		opts.WrapWithDirectory = addFlags.wrap
	}

	return opts, opts.Validate()
}

// newBytesBar 按字节显示进度，total 未知时传 -1
func newBytesBar(w io.Writer, total int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// totalSize 单个文件返回其大小，目录返回 -1 (忽略规则生效前无法精确统计)
func totalSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return -1
	}
	return info.Size()
}

func init() {
	rootCmd.AddCommand(addCmd)

	f := addCmd.Flags()
	f.StringVarP(&addFlags.strategy, "strategy", "s", "", "DAG layout (flat|balanced|trickle)")
	f.StringVar(&addFlags.chunker, "chunker", "", "chunking algorithm (size-N|fastcdc)")
	f.IntVar(&addFlags.maxChildren, "max-children", 0, "maximum links per internal node")
	f.BoolVar(&addFlags.rawLeaves, "raw-leaves", false, "store leaves as raw blocks (CIDv1)")
	f.IntVar(&addFlags.cidVersion, "cid-version", 0, "CID version for dag-pb nodes (0|1)")
	f.BoolVarP(&addFlags.onlyHash, "only-hash", "n", false, "only compute CIDs, write nothing")
	f.BoolVarP(&addFlags.wrap, "wrap", "w", false, "wrap the import in an unnamed directory")
	f.BoolVar(&addFlags.preserveMode, "preserve-mode", false, "record file permissions")
	f.BoolVar(&addFlags.preserveMtime, "preserve-mtime", false, "record file modification times")
	f.BoolVarP(&addFlags.quiet, "quiet", "q", false, "no progress bar")
	f.StringSliceVar(&addFlags.ignore, "ignore", nil, "extra ignore patterns (gitignore syntax), applied after .ufsignore")
}
