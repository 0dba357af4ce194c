package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ufsvault/pkg/app"
)

var snapshotMsg string

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"commit"},
	Short:   "Record the staged files as a snapshot",
	Long: `Build a directory tree from the index, store a snapshot pointing at it
(with the current HEAD as parent) and move HEAD to the new snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 0. 参数检查
		if err := requireApp(); err != nil {
			return err
		}
		if snapshotMsg == "" {
			return fmt.Errorf("snapshot message cannot be empty (use -m)")
		}
		out := cmd.OutOrStdout()
		start := time.Now()

		author := viper.GetString("user.name")
		if author == "" {
			author = "ufsvault user"
		}

		res, err := UFS.Snapshot(cmd.Context(), author, snapshotMsg)
		if errors.Is(err, app.ErrNothingToSnapshot) {
			fmt.Fprintln(out, "nothing to snapshot, index is empty")
			return nil
		}
		if err != nil {
			return err
		}

		if res.Initial {
			fmt.Fprintln(out, "Initial snapshot")
		}
		fmt.Fprintf(out, "[%s] %s\n", res.Snapshot.Cid(), snapshotMsg)
		fmt.Fprintf(out, "   Tree: %s (%s, %d dirs)\n", res.Tree.Root, humanize.IBytes(res.Tree.Size), len(res.Tree.Dirs))
		fmt.Fprintf(out, "   Time: %s | Author: %s\n", time.Since(start).Round(time.Millisecond), author)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapshotMsg, "message", "m", "", "snapshot message")
}
