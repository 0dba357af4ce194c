package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var importsLimit int

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List recent file imports",
	Long:  `Show the import records kept in the metadata database, newest first, with the layout and chunker each file was imported with.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		recs, err := UFS.Meta.ListImports(cmd.Context(), importsLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(out, "No imports recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CID\tSIZE\tLAYOUT\tCHUNKER\tIMPORTED\tPATH")
		for _, r := range recs {
			opts, err := r.DecodeOptions()
			if err != nil {
				return fmt.Errorf("bad options on import %d: %w", r.ID, err)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.RootCid, humanize.IBytes(r.FileSize), r.Strategy, opts.Chunker,
				humanize.Time(r.CreatedAt), r.Path)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(importsCmd)
	importsCmd.Flags().IntVarP(&importsLimit, "max-count", "n", 20, "limit the number of records shown (0 for all)")
}
