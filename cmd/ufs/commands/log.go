package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"ufsvault/pkg/core"
)

var (
	logLimit  int
	logAuthor string
)

var logCmd = &cobra.Command{
	Use:   "log [snapshot-cid]",
	Short: "Show snapshot history",
	Long:  `Display the snapshot history starting from the given snapshot (or HEAD), following first parents.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if logAuthor != "" {
			if len(args) > 0 {
				return fmt.Errorf("--author cannot be combined with a starting snapshot")
			}
			return logByAuthor(cmd, out)
		}

		// 1. 确定起始点
		start := cid.Undef
		if len(args) > 0 {
			c, err := cid.Decode(args[0])
			if err != nil {
				return fmt.Errorf("invalid snapshot argument '%s': %w", args[0], err)
			}
			start = c
		}

		// 2. 遍历
		shown := 0
		for snap, err := range UFS.History(cmd.Context(), start) {
			if err != nil {
				return err
			}
			printSnapshotLog(out, snap.Cid(), snap)
			shown++
			if logLimit > 0 && shown >= logLimit {
				break
			}
		}
		if shown == 0 {
			fmt.Fprintln(out, "No snapshots yet.")
		}
		return nil
	},
}

// logByAuthor 走元数据库的索引，不需要沿父链遍历
func logByAuthor(cmd *cobra.Command, out io.Writer) error {
	rows, err := UFS.Meta.FindSnapshotsByAuthor(cmd.Context(), logAuthor, logLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "No snapshots by %s.\n", logAuthor)
		return nil
	}
	for _, row := range rows {
		c, err := cid.Decode(row.Cid)
		if err != nil {
			return fmt.Errorf("bad snapshot cid in metadata %q: %w", row.Cid, err)
		}
		tree, err := cid.Decode(row.TreeCid)
		if err != nil {
			return fmt.Errorf("bad tree cid in metadata %q: %w", row.TreeCid, err)
		}
		printSnapshotLog(out, c, &core.Snapshot{
			Tree:      core.Link{Cid: tree},
			Author:    row.Author,
			Message:   row.Message,
			Timestamp: row.Timestamp,
		})
	}
	return nil
}

// printSnapshotLog 仿 git log 的格式
func printSnapshotLog(w io.Writer, c cid.Cid, s *core.Snapshot) {
	const (
		colorYellow = "\033[33m"
		colorReset  = "\033[0m"
	)

	fmt.Fprintf(w, "%ssnapshot %s%s\n", colorYellow, c, colorReset)
	fmt.Fprintf(w, "Tree:   %s\n", s.Tree.Cid)
	fmt.Fprintf(w, "Author: %s\n", s.Author)
	fmt.Fprintf(w, "Date:   %s\n", time.Unix(s.Timestamp, 0).Format(time.RFC1123))
	fmt.Fprintf(w, "\n    %s\n\n", s.Message)
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLimit, "max-count", "n", 0, "limit the number of snapshots shown")
	logCmd.Flags().StringVar(&logAuthor, "author", "", "list snapshots by this author (newest first)")
}
