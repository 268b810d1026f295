// Package cleaning repairs the structural irregularities left behind when
// several REDCap exports are stacked into one table, and publishes the
// cleaned report and variable dictionary.
package cleaning

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"redcapdl/internal/table"
)

// ParticipantIDColumn names the sparsely populated identifier column.
const ParticipantIDColumn = "participant_id"

// DefaultIDTag prefixes every rendered participant identifier.
const DefaultIDTag = "ABD"

var (
	// ErrNotText is returned when string replacement meets a non-text cell.
	ErrNotText = errors.New("cleaning: column is not text")
	// ErrLeadingMissingID is returned when the first participant identifier is missing.
	ErrLeadingMissingID = errors.New("cleaning: first participant identifier is missing")
	// ErrInvalidParticipantID is returned when an identifier is not an integer.
	ErrInvalidParticipantID = errors.New("cleaning: participant identifier is not an integer")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("cleaning: column not found")
)

// Replacement is one literal substitution.
type Replacement struct {
	Old string
	New string
}

// MergeConflict records a row where two same-named columns held different
// values. The left-most value wins.
type MergeConflict struct {
	Column    string
	Row       int
	Kept      table.Cell
	Discarded table.Cell
}

func (c MergeConflict) String() string {
	return fmt.Sprintf("%s[%d]: kept %q, discarded %q", c.Column, c.Row, c.Kept.String(), c.Discarded.String())
}

// DropEmptyColumns removes every column whose cells are all missing.
func DropEmptyColumns(t *table.Table) *table.Table {
	kept := make([]*table.Column, 0, t.Width())
	for _, col := range t.Columns() {
		if !col.AllMissing() {
			kept = append(kept, col)
		}
	}
	out, _ := table.NewTable(t.Len(), kept...)
	return out
}

// MergeDuplicateColumns collapses same-named columns into one, taking the
// first non-missing cell of each row in left-to-right order.
func MergeDuplicateColumns(t *table.Table) *table.Table {
	out, _ := MergeDuplicateColumnsReport(t)
	return out
}

// MergeDuplicateColumnsReport behaves like MergeDuplicateColumns and also
// reports every row where the group held two different non-missing values.
func MergeDuplicateColumnsReport(t *table.Table) (*table.Table, []MergeConflict) {
	var order []string
	groups := make(map[string][]*table.Column)
	for _, col := range t.Columns() {
		if _, seen := groups[col.Name]; !seen {
			order = append(order, col.Name)
		}
		groups[col.Name] = append(groups[col.Name], col)
	}

	var conflicts []MergeConflict
	merged := make([]*table.Column, 0, len(order))
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		cells := make([]table.Cell, t.Len())
		for row := range cells {
			for _, col := range group {
				cell := col.Cells[row]
				if cell.IsMissing() {
					continue
				}
				if cells[row].IsMissing() {
					cells[row] = cell
					continue
				}
				if !cells[row].Equal(cell) {
					conflicts = append(conflicts, MergeConflict{Column: name, Row: row, Kept: cells[row], Discarded: cell})
				}
			}
		}
		merged = append(merged, table.NewColumn(name, cells...))
	}
	out, _ := table.NewTable(t.Len(), merged...)
	return out, conflicts
}

// ReplaceStrings applies each replacement, in order, to every text cell of
// col. Later replacements see the output of earlier ones. Missing cells pass
// through; any other kind is an error.
func ReplaceStrings(col *table.Column, replacements []Replacement) (*table.Column, error) {
	out := make([]table.Cell, col.Len())
	for i, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		s, ok := cell.AsText()
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d holds %s", ErrNotText, col.Name, i, cell.Kind())
		}
		for _, r := range replacements {
			s = strings.ReplaceAll(s, r.Old, r.New)
		}
		out[i] = table.Text(s)
	}
	return table.NewColumn(col.Name, out...), nil
}

// FillParticipantIDs forward-fills the participant_id column and renders
// each value as tag followed by the integer zero-padded to three digits.
func FillParticipantIDs(t *table.Table, tag string) (*table.Table, error) {
	col, pos, ok := t.Lookup(ParticipantIDColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ParticipantIDColumn)
	}
	if t.Len() == 0 {
		return t, nil
	}
	if col.Cells[0].IsMissing() {
		return nil, ErrLeadingMissingID
	}

	out := make([]table.Cell, t.Len())
	var current int64
	for i, cell := range col.Cells {
		if !cell.IsMissing() {
			id, err := participantNumber(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			current = id
		}
		out[i] = table.Text(fmt.Sprintf("%s%03d", tag, current))
	}
	return t.Replace(pos, table.NewColumn(col.Name, out...))
}

func participantNumber(cell table.Cell) (int64, error) {
	switch cell.Kind() {
	case table.KindInteger:
		v, _ := cell.AsInt()
		return v, nil
	case table.KindDecimal:
		f, _ := cell.AsDecimal()
		if f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidParticipantID, f)
		}
		return int64(f), nil
	case table.KindText:
		s, _ := cell.AsText()
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidParticipantID, s)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidParticipantID, cell.Kind())
	}
}
