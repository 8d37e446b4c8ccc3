package main

import (
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics for the current dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		// pt-BR digit grouping and decimal separators, matching the
		// dashboard's locale.
		p := message.NewPrinter(language.BrazilianPortuguese)
		p.Printf("Total de pedidos: %d\n", stats.TotalPedidos)
		p.Printf("Peso total: %.2f kg\n", stats.PesoTotal)
		p.Printf("Valor total: R$ %.2f\n", stats.ValorTotal)

		if len(stats.PorCidade) == 0 {
			return nil
		}

		p.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		p.Fprintf(w, "CIDADE\tPEDIDOS\tPESO\tVALOR\n")
		for _, c := range stats.PorCidade {
			p.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n", c.Cidade, c.TotalPedidos, c.PesoTotal, c.ValorTotal)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
