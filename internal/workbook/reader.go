// Package workbook reads raw price rows from xlsx files and writes derived
// rows back out.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"SeasonalDesk/internal/model"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("no sheets found")

// ReadFile decodes the first worksheet of the xlsx file at path.
func ReadFile(path string) ([]model.RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return firstSheet(f)
}

// Read decodes the first worksheet of an xlsx stream.
func Read(r io.Reader) ([]model.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return firstSheet(f)
}

// firstSheet maps each row after the header row to header -> raw cell
// value. Cells are read unformatted so date cells arrive as day serials.
func firstSheet(f *excelize.File) ([]model.RawRow, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	out := []model.RawRow{}
	if len(rows) == 0 {
		return out, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	for r, cells := range rows[1:] {
		row := model.RawRow{}
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" || cell == "" {
				continue
			}
			v, ok, err := cellValue(f, sheets[0], i+1, r+2, cell)
			if err != nil {
				return nil, err
			}
			if ok {
				row[headers[i]] = v
			}
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// cellValue types a raw cell. Raw booleans read as "1"/"0", so they are
// returned as bool to keep them from coercing to a date serial or a price.
// Error cells such as #N/A are omitted.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) (any, bool, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, false, err
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return nil, false, fmt.Errorf("cell %s type: %w", name, err)
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), true, nil
	case excelize.CellTypeError:
		return nil, false, nil
	default:
		return raw, true, nil
	}
}
