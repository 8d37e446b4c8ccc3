package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pedidos/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_Count(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pedidos`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(peso_pedido\), 0\), COALESCE\(SUM\(valor\), 0\) FROM pedidos`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "peso", "valor"}).AddRow(3, 16.0, 1150.0))

	mock.ExpectQuery(`GROUP BY cidade ORDER BY SUM\(valor\) DESC, MIN\(id\) ASC`).
		WillReturnRows(pgxmock.NewRows([]string{"cidade", "count", "peso", "valor"}).
			AddRow("Santos", 1, 1.0, 1000.0).
			AddRow("Campinas", 2, 15.0, 150.0))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPedidos)
	assert.Equal(t, 16.0, stats.PesoTotal)
	assert.Equal(t, 1150.0, stats.ValorTotal)
	require.Len(t, stats.PorCidade, 2)
	assert.Equal(t, "Santos", stats.PorCidade[0].Cidade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Stats_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "peso", "valor"}).AddRow(0, 0.0, 0.0))
	mock.ExpectQuery(`GROUP BY cidade`).
		WillReturnRows(pgxmock.NewRows([]string{"cidade", "count", "peso", "valor"}))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPedidos)
	assert.Empty(t, stats.PorCidade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// anyInsertArgs matches the 12 positional arguments of the pedidos INSERT.
func anyInsertArgs() []any {
	args := make([]any, 12)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgres_ReplaceAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pedidos`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`SAVEPOINT pedido_row`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO pedidos`).WithArgs(anyInsertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SAVEPOINT pedido_row`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO pedidos`).WithArgs(anyInsertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.ReplaceAll(context.Background(), []model.Pedido{
		{Pedido: "1", Cidade: "Santos"},
		{Pedido: "2", Cidade: "Campinas"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceAll_SkipsFailedRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pedidos`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`SAVEPOINT pedido_row`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO pedidos`).WithArgs(anyInsertArgs()...).WillReturnError(assert.AnError)
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT pedido_row`).WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectExec(`SAVEPOINT pedido_row`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO pedidos`).WithArgs(anyInsertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.ReplaceAll(context.Background(), []model.Pedido{
		{Pedido: "bad"},
		{Pedido: "good"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceAll_DeleteFailureAborts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM pedidos`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.ReplaceAll(context.Background(), []model.Pedido{{Pedido: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete pedidos")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, pedido, data, cod_cliente`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "pedido", "data", "cod_cliente", "razao_social", "cep", "endereco",
			"bairro", "cidade", "estado", "peso_pedido", "valor", "created_at",
		}).AddRow(int64(1), "1001", "01/02/2024", "C1", "Acme LTDA", "", "", "", "Campinas", "SP", 10.0, 100.0, testTime()))

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Campinas", got[0].Cidade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testTime() time.Time {
	return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
}

func TestPostgres_StartImport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO import_runs`).
		WithArgs(pgxmock.AnyArg(), "pedidos.xlsx", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.StartImport(context.Background(), "pedidos.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteImport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteImport(context.Background(), "missing", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
