package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"redcapdl/internal/table"
)

// ErrNoColumns is returned when a table without columns is rendered as
// parquet; the format cannot describe an empty schema.
var ErrNoColumns = errors.New("export: table has no columns")

// ParquetRenderer writes a Snappy-compressed parquet file. Homogeneous integer
// and decimal columns keep their type; every other column is stored as utf8.
// Missing cells are nulls.
type ParquetRenderer struct{}

func (ParquetRenderer) Format() Format      { return FormatParquet }
func (ParquetRenderer) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetRenderer) Render(t *table.Table) ([]byte, error) {
	if t.Width() == 0 {
		return nil, ErrNoColumns
	}
	mem := memory.NewGoAllocator()
	fields := make([]arrow.Field, t.Width())
	arrays := make([]arrow.Array, t.Width())
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()
	for i, col := range t.Columns() {
		fields[i], arrays[i] = buildArray(mem, col)
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(t.Len()))
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	writer, err := pqarrow.NewFileWriter(schema, &buf, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := writer.WriteTable(tbl, max(tbl.NumRows(), 1)); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("write parquet table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func buildArray(mem memory.Allocator, col *table.Column) (arrow.Field, arrow.Array) {
	kind, ok := col.Homogeneous()
	switch {
	case ok && kind == table.KindInteger:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, c := range col.Cells {
			if v, ok := c.AsInt(); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return arrow.Field{Name: col.Name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}, b.NewArray()
	case ok && kind == table.KindDecimal:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, c := range col.Cells {
			if v, ok := c.AsDecimal(); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return arrow.Field{Name: col.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}, b.NewArray()
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, c := range col.Cells {
			if c.IsMissing() {
				b.AppendNull()
			} else {
				b.Append(c.String())
			}
		}
		return arrow.Field{Name: col.Name, Type: arrow.BinaryTypes.String, Nullable: true}, b.NewArray()
	}
}
