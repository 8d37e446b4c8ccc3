// Package store persists the authoritative pedido dataset and computes
// aggregate statistics from it on demand.
package store

import (
	"context"

	"github.com/sells-group/pedidos/internal/model"
)

// ReplaceResult reports the outcome of a replace-all load.
type ReplaceResult struct {
	// Inserted is the number of rows successfully written.
	Inserted int
	// Failed is the number of rows that failed insertion and were skipped.
	Failed int
}

// Store defines the persistence interface for the order dataset.
//
// ReplaceAll is the only mutation path: it deletes the previous dataset and
// inserts the new batch inside a single transaction. Row-level insert
// failures are logged and skipped; a delete failure or a transaction fault
// rolls the whole call back, leaving the prior dataset intact.
//
// Read operations always reflect the live dataset; aggregates are never
// cached.
type Store interface {
	// Dataset
	ReplaceAll(ctx context.Context, pedidos []model.Pedido) (*ReplaceResult, error)
	List(ctx context.Context) ([]model.Pedido, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Import log
	StartImport(ctx context.Context, source string) (string, error)
	CompleteImport(ctx context.Context, runID string, imported, skipped int) error
	FailImport(ctx context.Context, runID string, cause error) error
	ListImports(ctx context.Context, limit int) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
