package fetcher

import (
	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
)

// ReadXLS decodes the first sheet of a legacy .xls workbook into a Document.
func ReadXLS(path string) (Document, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, eris.Wrap(err, "xls: open file")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, eris.New("xls: workbook has no sheets")
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}

	return rowsToDocument(grid), nil
}
