// Package table provides the column-oriented Table used to move REDCap exports
// between the fetch, accumulate, clean and publish stages.
package table

import (
	"errors"
	"fmt"
)

// ErrRaggedColumns is returned when columns of a table disagree on row count.
var ErrRaggedColumns = errors.New("table: columns have different lengths")

// Column is a named, ordered sequence of cells.
type Column struct {
	Name  string
	Cells []Cell
}

// NewColumn returns a column holding the given cells.
func NewColumn(name string, cells ...Cell) *Column {
	return &Column{Name: name, Cells: cells}
}

// MissingColumn returns a column of n missing cells.
func MissingColumn(name string, n int) *Column {
	return &Column{Name: name, Cells: make([]Cell, n)}
}

// Len returns the number of cells in the column.
func (c *Column) Len() int { return len(c.Cells) }

// AllMissing reports whether every cell is the missing marker. An empty column is all missing.
func (c *Column) AllMissing() bool {
	for _, cell := range c.Cells {
		if !cell.IsMissing() {
			return false
		}
	}
	return true
}

// Homogeneous returns the single kind shared by all non-missing cells.
// The second result is false when the column mixes kinds. A column with
// no values reports KindMissing.
func (c *Column) Homogeneous() (Kind, bool) {
	kind := KindMissing
	for _, cell := range c.Cells {
		if cell.IsMissing() {
			continue
		}
		if kind == KindMissing {
			kind = cell.Kind()
			continue
		}
		if cell.Kind() != kind {
			return kind, false
		}
	}
	return kind, true
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	cells := make([]Cell, len(c.Cells))
	copy(cells, c.Cells)
	return &Column{Name: c.Name, Cells: cells}
}

// Table is an ordered set of equally long columns. Column names are not
// required to be unique.
type Table struct {
	rows    int
	columns []*Column
}

// New returns an empty table with no rows and no columns.
func New() *Table { return &Table{} }

// NewTable builds a table with an explicit row count. Every column must hold
// exactly rows cells. The row count is kept even when no columns remain.
func NewTable(rows int, cols ...*Column) (*Table, error) {
	if rows < 0 {
		return nil, fmt.Errorf("table: negative row count %d", rows)
	}
	for _, col := range cols {
		if col == nil {
			return nil, fmt.Errorf("table: nil column")
		}
		if col.Len() != rows {
			return nil, fmt.Errorf("%w: column %q has %d cells, want %d", ErrRaggedColumns, col.Name, col.Len(), rows)
		}
	}
	out := make([]*Column, len(cols))
	copy(out, cols)
	return &Table{rows: rows, columns: out}, nil
}

// FromColumns builds a table whose row count is taken from the first column.
func FromColumns(cols ...*Column) (*Table, error) {
	if len(cols) == 0 {
		return New(), nil
	}
	if cols[0] == nil {
		return nil, fmt.Errorf("table: nil column")
	}
	return NewTable(cols[0].Len(), cols...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns, duplicates included.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the table's columns in order. The slice is a copy; the
// columns are shared.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the i-th column.
func (t *Table) Column(i int) *Column { return t.columns[i] }

// Names returns column names in order, duplicates included.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Lookup returns the first column named name and its position.
func (t *Table) Lookup(name string) (*Column, int, bool) {
	for i, col := range t.columns {
		if col.Name == name {
			return col, i, true
		}
	}
	return nil, -1, false
}

// Replace returns a copy of t with the column at position i swapped for col.
func (t *Table) Replace(i int, col *Column) (*Table, error) {
	if i < 0 || i >= len(t.columns) {
		return nil, fmt.Errorf("table: column index %d out of range", i)
	}
	cols := t.Columns()
	cols[i] = col
	return NewTable(t.rows, cols...)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		cols[i] = col.Clone()
	}
	return &Table{rows: t.rows, columns: cols}
}
