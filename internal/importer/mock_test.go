package importer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sells-group/pedidos/internal/model"
	"github.com/sells-group/pedidos/internal/store"
)

// mockStore is an in-memory store.Store with failure injection for
// exercising the importer without a database.
type mockStore struct {
	mu      sync.Mutex
	pedidos []model.Pedido
	nextID  int64
	runs    map[string]*model.ImportRun
	runSeq  int

	replaceErr error
	startErr   error

	replaceCalls int32
	inReplace    int32
	maxInReplace int32
}

func newMockStore() *mockStore {
	return &mockStore{runs: map[string]*model.ImportRun{}}
}

func (m *mockStore) ReplaceAll(_ context.Context, pedidos []model.Pedido) (*store.ReplaceResult, error) {
	// Track overlapping calls to verify import serialization.
	n := atomic.AddInt32(&m.inReplace, 1)
	defer atomic.AddInt32(&m.inReplace, -1)
	for {
		max := atomic.LoadInt32(&m.maxInReplace)
		if n <= max || atomic.CompareAndSwapInt32(&m.maxInReplace, max, n) {
			break
		}
	}
	atomic.AddInt32(&m.replaceCalls, 1)

	if m.replaceErr != nil {
		return nil, m.replaceErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pedidos = nil
	for _, p := range pedidos {
		m.nextID++
		p.ID = m.nextID
		m.pedidos = append(m.pedidos, p)
	}
	return &store.ReplaceResult{Inserted: len(pedidos)}, nil
}

func (m *mockStore) List(context.Context) ([]model.Pedido, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Pedido, len(m.pedidos))
	copy(out, m.pedidos)
	return out, nil
}

func (m *mockStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pedidos), nil
}

func (m *mockStore) Stats(context.Context) (*model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &model.Stats{PorCidade: []model.CityStats{}}
	idx := map[string]int{}
	for _, p := range m.pedidos {
		stats.TotalPedidos++
		stats.PesoTotal += p.PesoPedido
		stats.ValorTotal += p.Valor
		i, ok := idx[p.Cidade]
		if !ok {
			i = len(stats.PorCidade)
			idx[p.Cidade] = i
			stats.PorCidade = append(stats.PorCidade, model.CityStats{Cidade: p.Cidade})
		}
		stats.PorCidade[i].TotalPedidos++
		stats.PorCidade[i].PesoTotal += p.PesoPedido
		stats.PorCidade[i].ValorTotal += p.Valor
	}
	return stats, nil
}

func (m *mockStore) StartImport(_ context.Context, source string) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runSeq++
	id := string(rune('a' + m.runSeq))
	m.runs[id] = &model.ImportRun{ID: id, Source: source, Status: model.ImportStatusRunning}
	return id, nil
}

func (m *mockStore) CompleteImport(_ context.Context, runID string, imported, skipped int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[runID]
	r.Status = model.ImportStatusComplete
	r.Imported = imported
	r.Skipped = skipped
	return nil
}

func (m *mockStore) FailImport(_ context.Context, runID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[runID]
	r.Status = model.ImportStatusFailed
	r.Error = cause.Error()
	return nil
}

func (m *mockStore) ListImports(context.Context, int) ([]model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ImportRun{}
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

var _ store.Store = (*mockStore)(nil)
