// Package accumulator stacks the per-project REDCap tables of one run into a
// single table and tracks the data type label shared by those projects.
package accumulator

import (
	"fmt"

	"redcapdl/internal/table"
)

// Outcome classifies a SetDataType call.
type Outcome int

const (
	// OutcomeFirstSet means the label was unset and has now been stored.
	OutcomeFirstSet Outcome = iota + 1
	// OutcomeConsistent means the derived label equals the stored one.
	OutcomeConsistent
	// OutcomeConflicting means the derived label differs from the stored one.
	// The stored label is kept.
	OutcomeConflicting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstSet:
		return "first_set"
	case OutcomeConsistent:
		return "consistent"
	case OutcomeConflicting:
		return "conflicting"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Accumulator owns the growing table for one export kind (report or
// variable dictionary). It has a single writer: the aggregation loop.
type Accumulator struct {
	name     string
	derive   Deriver
	data     *table.Table
	dataType string
	typed    bool
}

// New returns an empty accumulator. A nil deriver falls back to DefaultDeriver.
func New(name string, derive Deriver) *Accumulator {
	if derive == nil {
		derive = DefaultDeriver()
	}
	return &Accumulator{name: name, derive: derive, data: table.New()}
}

// Name identifies the accumulator in logs and artifact names.
func (a *Accumulator) Name() string { return a.name }

// Data returns the accumulated table.
func (a *Accumulator) Data() *table.Table { return a.data }

// DataType returns the stored label and whether one has been set.
func (a *Accumulator) DataType() (string, bool) { return a.dataType, a.typed }

// Append stacks t's rows under the existing rows. Columns are aligned by name
// and occurrence, so the second "score" column of t lines up with the second
// "score" column already held. Columns missing on either side are padded with
// missing cells.
func (a *Accumulator) Append(t *table.Table) error {
	if t == nil {
		return fmt.Errorf("accumulator %s: nil table", a.name)
	}
	prior := a.data.Len()
	added := t.Len()

	incoming := make(map[columnKey]*table.Column, t.Width())
	for i, key := range keysOf(t) {
		incoming[key] = t.Column(i)
	}

	cols := make([]*table.Column, 0, a.data.Width()+t.Width())
	matched := make(map[columnKey]bool, len(incoming))
	for i, key := range keysOf(a.data) {
		existing := a.data.Column(i)
		cells := make([]table.Cell, prior+added)
		copy(cells, existing.Cells)
		if col, ok := incoming[key]; ok {
			copy(cells[prior:], col.Cells)
			matched[key] = true
		}
		cols = append(cols, table.NewColumn(existing.Name, cells...))
	}
	for i, key := range keysOf(t) {
		if matched[key] {
			continue
		}
		cells := make([]table.Cell, prior+added)
		copy(cells[prior:], t.Column(i).Cells)
		cols = append(cols, table.NewColumn(key.name, cells...))
	}

	next, err := table.NewTable(prior+added, cols...)
	if err != nil {
		return fmt.Errorf("accumulator %s: %w", a.name, err)
	}
	a.data = next
	return nil
}

// SetDataType derives a label from a project title. The label is stored only
// when none is set yet. The derived label and the outcome are always
// returned so the caller can decide whether a conflict is worth a warning.
func (a *Accumulator) SetDataType(projectTitle string) (string, Outcome) {
	label := a.derive(projectTitle)
	switch {
	case !a.typed:
		a.dataType, a.typed = label, true
		return label, OutcomeFirstSet
	case label == a.dataType:
		return label, OutcomeConsistent
	default:
		return label, OutcomeConflicting
	}
}

type columnKey struct {
	name string
	occ  int
}

func keysOf(t *table.Table) []columnKey {
	seen := make(map[string]int, t.Width())
	keys := make([]columnKey, t.Width())
	for i, name := range t.Names() {
		keys[i] = columnKey{name: name, occ: seen[name]}
		seen[name]++
	}
	return keys
}
