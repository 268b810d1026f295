package export

import (
	"bytes"

	"redcapdl/internal/table"
)

// CSVRenderer writes the table as a header row followed by one line per row.
// Missing cells become empty fields.
type CSVRenderer struct{}

func (CSVRenderer) Format() Format      { return FormatCSV }
func (CSVRenderer) ContentType() string { return "text/csv" }

func (CSVRenderer) Render(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
