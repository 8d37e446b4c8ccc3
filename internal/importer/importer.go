// Package importer turns decoded spreadsheet rows into canonical pedido
// records and loads them into the store, replacing the prior dataset.
package importer

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos/internal/fetcher"
	"github.com/sells-group/pedidos/internal/model"
	"github.com/sells-group/pedidos/internal/store"
)

// Column headers as they appear in the source spreadsheets. Lookups are
// exact: case- and accent-sensitive.
const (
	colPedido      = "PEDIDOS"
	colData        = "DATA DO PEDIDO"
	colCodCliente  = "COD CLIENTE"
	colRazaoSocial = "RAZÃO SOCIAL"
	colCEP         = "CEP"
	colEndereco    = "ENDERECO"
	colBairro      = "BAIRRO"
	colCidade      = "Cidades"
	colEstado      = "ESTADO"
	colPeso        = "PESO PEDIDO"
	colValor       = "VALOR"
)

// ErrNoDocument indicates the caller supplied no document to import.
var ErrNoDocument = eris.New("importer: no document provided")

// Result reports the outcome of one import run.
type Result struct {
	// Imported is the number of rows inserted into the store.
	Imported int
	// Skipped is the number of rows dropped by the skip rule
	// (blank or repeated-header rows).
	Skipped int
	// Failed is the number of rows that passed the skip rule but failed
	// insertion; they are logged by the store and excluded from Imported.
	Failed int
}

// Importer performs atomic replace-all loads of the pedido dataset.
// Imports are serialized: two concurrent calls never interleave their
// delete and insert phases.
type Importer struct {
	store store.Store
	mu    sync.Mutex
}

// New creates an Importer backed by the given store.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// Import validates and normalizes the document's rows and replaces the
// entire persisted dataset with them. Rows failing the skip rule are
// dropped silently; malformed fields degrade to defaults rather than
// rejecting the row. source names the input for logging and the import log.
func (im *Importer) Import(ctx context.Context, doc fetcher.Document, source string) (*Result, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	log := zap.L().With(zap.String("source", source))

	runID, err := im.store.StartImport(ctx, source)
	if err != nil {
		// The import log is bookkeeping; its failure never blocks an import.
		log.Warn("import log unavailable", zap.Error(err))
		runID = ""
	}

	pedidos := make([]model.Pedido, 0, len(doc))
	skipped := 0
	for _, row := range doc {
		if skipRow(row) {
			skipped++
			continue
		}
		pedidos = append(pedidos, mapRow(row))
	}

	replaced, err := im.store.ReplaceAll(ctx, pedidos)
	if err != nil {
		storeErr := eris.Wrap(err, "importer: replace dataset")
		if runID != "" {
			if ferr := im.store.FailImport(ctx, runID, storeErr); ferr != nil {
				log.Warn("mark import failed", zap.Error(ferr))
			}
		}
		return nil, storeErr
	}

	res := &Result{
		Imported: replaced.Inserted,
		Skipped:  skipped,
		Failed:   replaced.Failed,
	}

	if runID != "" {
		if err := im.store.CompleteImport(ctx, runID, res.Imported, res.Skipped); err != nil {
			log.Warn("mark import complete", zap.Error(err))
		}
	}

	log.Info("import complete",
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// skipRow drops blank rows and repeated header blocks embedded mid-sheet:
// a row is discarded when its PEDIDOS or Cidades cell is missing, empty,
// or literally repeats the header text.
func skipRow(row fetcher.Row) bool {
	return row[colPedido] == "" || row[colPedido] == colPedido ||
		row[colCidade] == "" || row[colCidade] == colCidade
}

// mapRow coerces one retained row into a canonical record. String fields
// default to "" when absent; numeric fields degrade to 0 on any parse
// failure so a single dirty cell never rejects the row.
func mapRow(row fetcher.Row) model.Pedido {
	return model.Pedido{
		Pedido:      row[colPedido],
		Data:        row[colData],
		CodCliente:  row[colCodCliente],
		RazaoSocial: row[colRazaoSocial],
		CEP:         row[colCEP],
		Endereco:    row[colEndereco],
		Bairro:      row[colBairro],
		Cidade:      row[colCidade],
		Estado:      row[colEstado],
		PesoPedido:  parseFloat(row[colPeso]),
		Valor:       parseFloat(row[colValor]),
	}
}

// parseFloat coerces a cell to a finite non-negative float, defaulting to 0.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
