package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos/internal/db"
	"github.com/sells-group/pedidos/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot read paths.
var preparedStatements = map[string]string{
	"list_pedidos":  pgListPedidos,
	"count_pedidos": pgCountPedidos,
	"stats_totals":  pgStatsTotals,
	"stats_cidades": pgStatsCidades,
}

const (
	pgListPedidos = `SELECT id, pedido, data, cod_cliente, razao_social, cep, endereco,
		bairro, cidade, estado, peso_pedido, valor, created_at
		FROM pedidos ORDER BY id`
	pgCountPedidos = `SELECT COUNT(*) FROM pedidos`
	pgStatsTotals  = `SELECT COUNT(*), COALESCE(SUM(peso_pedido), 0), COALESCE(SUM(valor), 0) FROM pedidos`
	pgStatsCidades = `SELECT cidade, COUNT(*), SUM(peso_pedido), SUM(valor)
		FROM pedidos GROUP BY cidade ORDER BY SUM(valor) DESC, MIN(id) ASC`
	pgInsertPedido = `INSERT INTO pedidos (
		pedido, data, cod_cliente, razao_social, cep, endereco,
		bairro, cidade, estado, peso_pedido, valor, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pedidos (
	id           BIGSERIAL PRIMARY KEY,
	pedido       TEXT NOT NULL DEFAULT '',
	data         TEXT NOT NULL DEFAULT '',
	cod_cliente  TEXT NOT NULL DEFAULT '',
	razao_social TEXT NOT NULL DEFAULT '',
	cep          TEXT NOT NULL DEFAULT '',
	endereco     TEXT NOT NULL DEFAULT '',
	bairro       TEXT NOT NULL DEFAULT '',
	cidade       TEXT NOT NULL DEFAULT '',
	estado       TEXT NOT NULL DEFAULT '',
	peso_pedido  DOUBLE PRECISION NOT NULL DEFAULT 0,
	valor        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	imported     INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pedidos_cidade ON pedidos(cidade);
CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ReplaceAll swaps the entire dataset for the given batch in one transaction.
// Each row insert runs under a savepoint so a bad row can be rolled back and
// skipped without poisoning the surrounding transaction.
func (s *PostgresStore) ReplaceAll(ctx context.Context, pedidos []model.Pedido) (*ReplaceResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM pedidos`); err != nil {
		return nil, eris.Wrap(err, "postgres: delete pedidos")
	}

	now := time.Now().UTC()
	res := &ReplaceResult{}
	for i, p := range pedidos {
		if _, err := tx.Exec(ctx, `SAVEPOINT pedido_row`); err != nil {
			return nil, eris.Wrap(err, "postgres: savepoint")
		}
		_, err := tx.Exec(ctx, pgInsertPedido,
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
			if _, err := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT pedido_row`); err != nil {
				return nil, eris.Wrap(err, "postgres: rollback savepoint")
			}
			continue
		}
		res.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit replace")
	}
	return res, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Pedido, error) {
	rows, err := s.pool.Query(ctx, pgListPedidos)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pedidos")
	}
	defer rows.Close()

	pedidos := []model.Pedido{}
	for rows.Next() {
		var p model.Pedido
		err := rows.Scan(&p.ID, &p.Pedido, &p.Data, &p.CodCliente, &p.RazaoSocial,
			&p.CEP, &p.Endereco, &p.Bairro, &p.Cidade, &p.Estado,
			&p.PesoPedido, &p.Valor, &p.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pedido")
		}
		pedidos = append(pedidos, p)
	}
	return pedidos, eris.Wrap(rows.Err(), "postgres: list pedidos iterate")
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, pgCountPedidos).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count pedidos")
	}
	return n, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{PorCidade: []model.CityStats{}}

	err := s.pool.QueryRow(ctx, pgStatsTotals).
		Scan(&stats.TotalPedidos, &stats.PesoTotal, &stats.ValorTotal)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}

	rows, err := s.pool.Query(ctx, pgStatsCidades)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats per city")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CityStats
		if err := rows.Scan(&c.Cidade, &c.TotalPedidos, &c.PesoTotal, &c.ValorTotal); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city stats")
		}
		stats.PorCidade = append(stats.PorCidade, c)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats per city iterate")
}

func (s *PostgresStore) StartImport(ctx context.Context, source string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.ImportStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start import")
	}
	return id, nil
}

func (s *PostgresStore) CompleteImport(ctx context.Context, runID string, imported, skipped int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, imported = $2, skipped = $3, completed_at = $4 WHERE id = $5`,
		string(model.ImportStatusComplete), imported, skipped, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete import %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailImport(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.ImportStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail import %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListImports(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, status, imported, skipped, COALESCE(error, ''), started_at, completed_at
		FROM import_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	runs := []model.ImportRun{}
	for rows.Next() {
		var r model.ImportRun
		var completed *time.Time
		err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Imported, &r.Skipped,
			&r.Error, &r.StartedAt, &completed)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan import run")
		}
		r.CompletedAt = completed
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list imports iterate")
}
