package table

import (
	"math"
	"strconv"
)

// Kind identifies which variant a Cell holds.
type Kind uint8

const (
	// KindMissing is the explicit "no value" state. It is distinct from an empty Text cell.
	KindMissing Kind = iota
	// KindText holds a string value.
	KindText
	// KindInteger holds an int64 value.
	KindInteger
	// KindDecimal holds a float64 value.
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Cell is a single scalar value. The zero value is Missing.
type Cell struct {
	kind Kind
	text string
	i    int64
	f    float64
}

// Missing returns the missing marker.
func Missing() Cell { return Cell{} }

// Text returns a text cell. The empty string is a valid, non-missing value.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Int returns an integer cell.
func Int(v int64) Cell { return Cell{kind: KindInteger, i: v} }

// Decimal returns a decimal cell. NaN is normalised to Missing.
func Decimal(v float64) Cell {
	if math.IsNaN(v) {
		return Missing()
	}
	return Cell{kind: KindDecimal, f: v}
}

// Kind reports the variant held by c.
func (c Cell) Kind() Kind { return c.kind }

// IsMissing reports whether c is the missing marker.
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// AsText returns the text value and whether c is a text cell.
func (c Cell) AsText() (string, bool) { return c.text, c.kind == KindText }

// AsInt returns the integer value and whether c is an integer cell.
func (c Cell) AsInt() (int64, bool) { return c.i, c.kind == KindInteger }

// AsDecimal returns the decimal value and whether c is a decimal cell.
func (c Cell) AsDecimal() (float64, bool) { return c.f, c.kind == KindDecimal }

// String renders the cell in its canonical output form. Missing renders as "".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindInteger:
		return strconv.FormatInt(c.i, 10)
	case KindDecimal:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindInteger:
		return c.i == o.i
	case KindDecimal:
		return c.f == o.f
	default:
		return true
	}
}
