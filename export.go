package salesbot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alpha-insights/salesbot/domain/model"
)

// WriteCSV writes the frame as CSV: one header row, then every data row
// with cells rendered as the pipeline presents them (ISO dates, plain
// numbers, empty string for nulls).
func WriteCSV(w io.Writer, f *model.Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns()); err != nil {
		return fmt.Errorf("salesbot: write csv header: %w", err)
	}
	for i := 0; i < f.Len(); i++ {
		if err := writer.Write(f.Row(i)); err != nil {
			return fmt.Errorf("salesbot: write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("salesbot: flush csv: %w", err)
	}
	return nil
}

// CSVBytes renders the frame as a CSV byte buffer.
func CSVBytes(f *model.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// csvSample renders at most limit rows as CSV for LLM prompt payloads. A
// render failure yields an empty sample rather than failing the prompt.
func csvSample(f *model.Frame, limit int) string {
	if f == nil || f.Len() == 0 {
		return ""
	}
	data, err := CSVBytes(f.Head(limit))
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteXLSX writes the frame as a single-sheet Excel workbook.
func WriteXLSX(w io.Writer, f *model.Frame, sheetName string) error {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if sheetName != "Sheet1" {
		if err := book.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("salesbot: name sheet: %w", err)
		}
	}

	header := make([]any, f.NumColumns())
	for i, name := range f.Columns() {
		header[i] = name
	}
	if err := setRow(book, sheetName, 1, header); err != nil {
		return err
	}
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := setRow(book, sheetName, i+2, cells); err != nil {
			return err
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("salesbot: write workbook: %w", err)
	}
	return nil
}

func setRow(book *excelize.File, sheet string, rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("salesbot: row %d: %w", rowNum, err)
	}
	if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("salesbot: row %d: %w", rowNum, err)
	}
	return nil
}
