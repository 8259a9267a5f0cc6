package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is a titled table. Rows are positional and must match Headers.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// CSVExporter renders a Dataset as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the MIME type of the rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension is the file extension of the rendered output.
func (e *CSVExporter) Extension() string { return "csv" }

// Render produces CSV bytes. Short rows are padded, long rows rejected.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for i, row := range data.Rows {
		record, err := fitRow(row, len(data.Headers))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i, err)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func fitRow(row []string, width int) ([]string, error) {
	if len(row) > width {
		return nil, fmt.Errorf("has %d cells, want at most %d", len(row), width)
	}
	if len(row) == width {
		return row, nil
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded, nil
}
