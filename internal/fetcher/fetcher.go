// Package fetcher decodes uploaded spreadsheet files into header-keyed rows
// for the importer. It supports the two common binary workbook formats,
// .xlsx and legacy .xls.
package fetcher

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Row maps column-header strings to cell values for one spreadsheet row.
// Empty cells are absent from the map. Lookup is case- and accent-sensitive.
type Row map[string]string

// Document is the ordered sequence of data rows decoded from the first
// sheet of a workbook. The sheet's first row supplies the headers and is
// not part of the document.
type Document []Row

// Open decodes the workbook at path into a Document, dispatching on the
// file extension.
func Open(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	case ".xls":
		return ReadXLS(path)
	default:
		return nil, eris.Errorf("fetcher: unsupported spreadsheet format %q", filepath.Ext(path))
	}
}

// rowsToDocument maps raw cell grids to header-keyed rows. The first grid
// row supplies the headers; header cells are trimmed, blank headers and
// blank cells are dropped.
func rowsToDocument(grid [][]string) Document {
	if len(grid) == 0 {
		return Document{}
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(h)
	}

	doc := make(Document, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := Row{}
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" || cell == "" {
				continue
			}
			row[headers[i]] = cell
		}
		doc = append(doc, row)
	}
	return doc
}
