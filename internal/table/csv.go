package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMissingTokens are the field values read as Missing. The set matches
// the NA markers analysis tools conventionally treat as absent.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

type readConfig struct {
	missing map[string]struct{}
	comma   rune
}

// ReadOption customises ReadCSV.
type ReadOption func(*readConfig)

// WithMissingTokens replaces the set of field values read as Missing.
func WithMissingTokens(tokens ...string) ReadOption {
	return func(c *readConfig) {
		c.missing = make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			c.missing[tok] = struct{}{}
		}
	}
}

// WithComma sets the field delimiter.
func WithComma(r rune) ReadOption {
	return func(c *readConfig) { c.comma = r }
}

// ReadCSV parses a header-first delimited payload into a Table. Duplicate
// header names are kept as separate columns. Each column's kind is inferred
// from all of its non-missing fields: integer when every field is an int64,
// decimal when every field is a float, text otherwise. An empty payload
// yields an empty table.
func ReadCSV(r io.Reader, opts ...ReadOption) (*Table, error) {
	cfg := readConfig{comma: ','}
	WithMissingTokens(DefaultMissingTokens...)(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	raw := make([][]string, len(header))
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rows+1, err)
		}
		for i, field := range record {
			raw[i] = append(raw[i], field)
		}
		rows++
	}

	cols := make([]*Column, len(header))
	for i, name := range header {
		cols[i] = inferColumn(name, raw[i], cfg.missing)
	}
	return NewTable(rows, cols...)
}

func inferColumn(name string, fields []string, missing map[string]struct{}) *Column {
	isInt, isFloat := true, true
	for _, field := range fields {
		if _, ok := missing[field]; ok {
			continue
		}
		if looksIntegral(field) {
			// out-of-range integers stay text rather than lose precision as floats
			if _, err := strconv.ParseInt(field, 10, 64); err != nil {
				isInt, isFloat = false, false
				break
			}
			continue
		}
		isInt = false
		if _, err := strconv.ParseFloat(field, 64); err != nil {
			isFloat = false
			break
		}
	}

	cells := make([]Cell, len(fields))
	for i, field := range fields {
		if _, ok := missing[field]; ok {
			continue
		}
		switch {
		case isInt:
			v, _ := strconv.ParseInt(field, 10, 64)
			cells[i] = Int(v)
		case isFloat:
			v, _ := strconv.ParseFloat(field, 64)
			cells[i] = Decimal(v)
		default:
			cells[i] = Text(field)
		}
	}
	return &Column{Name: name, Cells: cells}
}

func looksIntegral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WriteCSV writes t as a header-first comma separated payload. Missing cells
// are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.Width())
	for row := 0; row < t.Len(); row++ {
		for i, col := range t.columns {
			record[i] = col.Cells[row].String()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
