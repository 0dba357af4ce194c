package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ufsvault/pkg/exporter"
)

var (
	catOffset int64
	catLength int64
)

var catCmd = &cobra.Command{
	Use:   "cat [cid[/path]]",
	Short: "Show file content",
	Long: `Resolve the path and stream the file content (or the byte range given by --offset/--length) to stdout.
Binary content can be saved with 'ufs cat <cid> > file'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		var opts []exporter.ContentOption
		if catOffset != 0 {
			opts = append(opts, exporter.WithOffset(catOffset))
		}
		if catLength >= 0 {
			opts = append(opts, exporter.WithLength(catLength))
		}

		if _, err := UFS.GetExporter().ExportFile(cmd.Context(), args[0], cmd.OutOrStdout(), opts...); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "byte offset to start reading from")
	catCmd.Flags().Int64VarP(&catLength, "length", "l", -1, "maximum number of bytes to read (-1 reads to the end)")
}
