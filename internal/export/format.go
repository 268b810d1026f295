// Package export renders cleaned tables into artifact payloads and publishes
// them through the blob store.
package export

import (
	"fmt"
	"strings"

	"redcapdl/internal/table"
)

// Format names an artifact encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Renderer encodes a table as one artifact payload.
type Renderer interface {
	Format() Format
	ContentType() string
	Render(t *table.Table) ([]byte, error)
}

// RendererFor returns the renderer for f.
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatCSV:
		return CSVRenderer{}, nil
	case FormatParquet:
		return ParquetRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}
