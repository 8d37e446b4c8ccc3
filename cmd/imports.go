package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var importsLimit int

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List recent import runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListImports(ctx, importsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "STARTED\tSOURCE\tSTATUS\tIMPORTED\tSKIPPED\tERROR\n")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime),
				r.Source, r.Status, r.Imported, r.Skipped, r.Error,
			)
		}
		return w.Flush()
	},
}

func init() {
	importsCmd.Flags().IntVar(&importsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(importsCmd)
}
