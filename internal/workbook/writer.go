package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"SeasonalDesk/internal/model"
)

// SheetName is the worksheet written by every export.
const SheetName = "Processed_Data"

// storedColumns follow the derived columns in stored-row exports.
var storedColumns = []string{"id", "asset", "processed_date"}

// WriteDerived writes rows as an xlsx workbook to w.
func WriteDerived(w io.Writer, rows []model.DerivedRow) error {
	return write(w, model.DerivedColumns, len(rows), func(i int) []any {
		return rows[i].Values()
	})
}

// WriteStored writes persisted rows, appending id, asset and processed_date.
func WriteStored(w io.Writer, rows []model.StoredRow) error {
	headers := append(append([]string{}, model.DerivedColumns...), storedColumns...)
	return write(w, headers, len(rows), func(i int) []any {
		r := rows[i]
		return append(r.DerivedRow.Values(), r.ID, r.Asset, r.ProcessedDate)
	})
}

func write(w io.Writer, headers []string, n int, values func(int) []any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
