// Package model defines the domain types shared across the store, importer,
// and transport layers.
package model

import "time"

// Pedido is one normalized order record as persisted in the store.
// JSON field names follow the original spreadsheet vocabulary so the
// dashboard frontend can consume responses unchanged.
type Pedido struct {
	ID          int64     `json:"id"`
	Pedido      string    `json:"pedido"`
	Data        string    `json:"data"`
	CodCliente  string    `json:"cod_cliente"`
	RazaoSocial string    `json:"razao_social"`
	CEP         string    `json:"cep"`
	Endereco    string    `json:"endereco"`
	Bairro      string    `json:"bairro"`
	Cidade      string    `json:"cidade"`
	Estado      string    `json:"estado"`
	PesoPedido  float64   `json:"peso_pedido"`
	Valor       float64   `json:"valor"`
	CreatedAt   time.Time `json:"created_at"`
}

// CityStats holds the aggregate rollup for one distinct city value.
type CityStats struct {
	Cidade       string  `json:"cidade"`
	TotalPedidos int     `json:"total_pedidos"`
	PesoTotal    float64 `json:"peso_total"`
	ValorTotal   float64 `json:"valor_total"`
}

// Stats is the derived aggregate over the current dataset. It is computed
// on demand and never persisted.
type Stats struct {
	TotalPedidos int         `json:"total_pedidos"`
	PesoTotal    float64     `json:"peso_total"`
	ValorTotal   float64     `json:"valor_total"`
	PorCidade    []CityStats `json:"por_cidade"`
}

// ImportStatus enumerates the lifecycle states of an import run.
type ImportStatus string

const (
	ImportStatusRunning  ImportStatus = "running"
	ImportStatusComplete ImportStatus = "complete"
	ImportStatusFailed   ImportStatus = "failed"
)

// ImportRun records the outcome of one import for operator visibility.
// Only run metadata is kept; prior datasets are never retained.
type ImportRun struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Status      ImportStatus `json:"status"`
	Imported    int          `json:"imported"`
	Skipped     int          `json:"skipped"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
