package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos/internal/fetcher"
	"github.com/sells-group/pedidos/internal/importer"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an order spreadsheet, replacing the current dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := fetcher.Open(importFilePath)
		if err != nil {
			return err
		}

		res, err := importer.New(st).Import(ctx, doc, filepath.Base(importFilePath))
		if err != nil {
			return err
		}

		zap.L().Info("import finished",
			zap.String("file", importFilePath),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to .xlsx or .xls file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
