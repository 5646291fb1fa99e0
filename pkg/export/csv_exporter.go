// Package export renders roster report datasets into downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is one renderable report: a titled table with ordered columns.
// Rows carry values in column order.
type Dataset struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// CSVExporter renders a dataset as plain CSV. The title is omitted so the
// file opens cleanly in spreadsheet tools.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the column row followed by every data row. Rows shorter
// than the column set are padded so the file stays rectangular.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Columns))
		copy(record, row)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
