package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ufsvault/pkg/exporter"
)

var lsCmd = &cobra.Command{
	Use:   "ls [cid[/path]]",
	Short: "List directory entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()

		en, err := UFS.GetExporter().Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if !en.IsDir() {
			return fmt.Errorf("%w: %s is a %s", exporter.ErrNotDirectory, args[0], en.Kind)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for child, err := range en.Entries(ctx) {
			if err != nil {
				return err
			}
			name := child.Name
			if child.IsDir() {
				name += "/"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", child.Cid, humanize.IBytes(child.Size), name)
		}
		return tw.Flush()
	},
}

var statCmd = &cobra.Command{
	Use:   "stat [cid[/path]]",
	Short: "Show the structure of a block",
	Long:  `Print the node type, sizes, metadata and links of the block at the given path.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		return UFS.GetExporter().PrintObject(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
}
