package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pedidos/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pedidos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	pedido       TEXT NOT NULL DEFAULT '',
	data         TEXT NOT NULL DEFAULT '',
	cod_cliente  TEXT NOT NULL DEFAULT '',
	razao_social TEXT NOT NULL DEFAULT '',
	cep          TEXT NOT NULL DEFAULT '',
	endereco     TEXT NOT NULL DEFAULT '',
	bairro       TEXT NOT NULL DEFAULT '',
	cidade       TEXT NOT NULL DEFAULT '',
	estado       TEXT NOT NULL DEFAULT '',
	peso_pedido  REAL NOT NULL DEFAULT 0,
	valor        REAL NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	imported     INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pedidos_cidade ON pedidos(cidade);
CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertPedido = `
INSERT INTO pedidos (
	pedido, data, cod_cliente, razao_social, cep, endereco,
	bairro, cidade, estado, peso_pedido, valor, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ReplaceAll swaps the entire dataset for the given batch in one transaction.
// A row that fails to insert is logged and skipped; the rest of the batch
// proceeds. Only a delete failure or a commit fault aborts the call, in
// which case the previous dataset is left untouched.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, pedidos []model.Pedido) (*ReplaceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pedidos`); err != nil {
		return nil, eris.Wrap(err, "sqlite: delete pedidos")
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertPedido)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	res := &ReplaceResult{}
	for i, p := range pedidos {
		_, err := stmt.ExecContext(ctx,
			p.Pedido, p.Data, p.CodCliente, p.RazaoSocial, p.CEP, p.Endereco,
			p.Bairro, p.Cidade, p.Estado, p.PesoPedido, p.Valor, now,
		)
		if err != nil {
			res.Failed++
			zap.L().Warn("insert pedido failed, row skipped",
				zap.Int("row", i),
				zap.String("pedido", p.Pedido),
				zap.String("cidade", p.Cidade),
				zap.Error(err),
			)
			continue
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit replace")
	}
	return res, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Pedido, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pedido, data, cod_cliente, razao_social, cep, endereco,
		       bairro, cidade, estado, peso_pedido, valor, created_at
		FROM pedidos ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pedidos")
	}
	defer rows.Close()

	pedidos := []model.Pedido{}
	for rows.Next() {
		var p model.Pedido
		err := rows.Scan(&p.ID, &p.Pedido, &p.Data, &p.CodCliente, &p.RazaoSocial,
			&p.CEP, &p.Endereco, &p.Bairro, &p.Cidade, &p.Estado,
			&p.PesoPedido, &p.Valor, &p.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pedido")
		}
		pedidos = append(pedidos, p)
	}
	return pedidos, eris.Wrap(rows.Err(), "sqlite: list pedidos iterate")
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pedidos`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count pedidos")
	}
	return n, nil
}

// Stats recomputes the aggregate from the live dataset: totals in one query,
// per-city rollups in a second. Ties on total value keep first-encountered
// group order via MIN(id).
func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{PorCidade: []model.CityStats{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(peso_pedido), 0), COALESCE(SUM(valor), 0)
		FROM pedidos`).
		Scan(&stats.TotalPedidos, &stats.PesoTotal, &stats.ValorTotal)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cidade, COUNT(*), SUM(peso_pedido), SUM(valor)
		FROM pedidos
		GROUP BY cidade
		ORDER BY SUM(valor) DESC, MIN(id) ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats per city")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CityStats
		if err := rows.Scan(&c.Cidade, &c.TotalPedidos, &c.PesoTotal, &c.ValorTotal); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city stats")
		}
		stats.PorCidade = append(stats.PorCidade, c)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats per city iterate")
}

func (s *SQLiteStore) StartImport(ctx context.Context, source string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.ImportStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start import")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteImport(ctx context.Context, runID string, imported, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, imported = ?, skipped = ?, completed_at = ? WHERE id = ?`,
		string(model.ImportStatusComplete), imported, skipped, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete import %s", runID)
	}
	return checkRowsAffected(res, "import run", runID)
}

func (s *SQLiteStore) FailImport(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.ImportStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail import %s", runID)
	}
	return checkRowsAffected(res, "import run", runID)
}

func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, status, imported, skipped, COALESCE(error, ''), started_at, completed_at
		FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close()

	runs := []model.ImportRun{}
	for rows.Next() {
		var r model.ImportRun
		var completed sql.NullTime
		err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Imported, &r.Skipped,
			&r.Error, &r.StartedAt, &completed)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import run")
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list imports iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
