package formatter

import (
	"encoding/csv"
	"io"

	"github.com/tordrt/lala/internal/schema"
)

// CSVFormatter writes table rows as CSV
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// Format writes a header line with the row set's columns followed by one
// line per row. NULL is written as an empty field.
func (f *CSVFormatter) Format(rs *schema.RowSet) error {
	cw := csv.NewWriter(f.writer)

	if err := cw.Write(rs.Columns); err != nil {
		return err
	}

	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			record[i] = schema.FormatValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
