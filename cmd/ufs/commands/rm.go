package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [paths...]",
	Short: "Remove files from the staging area (index)",
	Long: `Unstage files or whole directories from the index. Files on disk and stored blocks are untouched,
they are only left out of the next snapshot.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// 1. 执行移除 (内存操作)
		count := 0
		for _, p := range args {
			n := UFS.Index.Remove(p)
			if n == 0 {
				fmt.Fprintf(out, "Not staged: %s\n", p)
				continue
			}
			fmt.Fprintf(out, "Unstaged: %s (%d)\n", p, n)
			count += n
		}

		// 2. 持久化 (原子写)
		if count > 0 {
			if err := UFS.Index.Save(); err != nil {
				return fmt.Errorf("failed to save index: %w", err)
			}
			fmt.Fprintf(out, "Removed %d files from index.\n", count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
