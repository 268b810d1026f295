package accumulator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"redcapdl/internal/table"
)

func mustTable(t *testing.T, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns(cols...)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return tbl
}

func TestAppend_UnionsColumnsAndPadsMissing(t *testing.T) {
	acc := New("report", nil)
	first := mustTable(t,
		table.NewColumn("participant_id", table.Int(1), table.Missing()),
		table.NewColumn("score", table.Int(10), table.Int(11)),
	)
	second := mustTable(t,
		table.NewColumn("participant_id", table.Int(2), table.Missing(), table.Missing()),
		table.NewColumn("mood", table.Text("ok"), table.Text("low"), table.Missing()),
	)
	if err := acc.Append(first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := acc.Append(second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	data := acc.Data()
	if data.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", data.Len())
	}
	want := []*table.Column{
		table.NewColumn("participant_id", table.Int(1), table.Missing(), table.Int(2), table.Missing(), table.Missing()),
		table.NewColumn("score", table.Int(10), table.Int(11), table.Missing(), table.Missing(), table.Missing()),
		table.NewColumn("mood", table.Missing(), table.Missing(), table.Text("ok"), table.Text("low"), table.Missing()),
	}
	if diff := cmp.Diff(want, data.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestAppend_AlignsDuplicateColumnsByOccurrence(t *testing.T) {
	acc := New("variables", nil)
	a := mustTable(t,
		table.NewColumn("field_name", table.Text("age")),
		table.NewColumn("field_label", table.Text("Age")),
		table.NewColumn("field_label", table.Missing()),
	)
	b := mustTable(t,
		table.NewColumn("field_label", table.Text("Mood")),
		table.NewColumn("field_name", table.Text("mood")),
		table.NewColumn("field_label", table.Text("Mood (dup)")),
	)
	_ = acc.Append(a)
	_ = acc.Append(b)

	got := acc.Data()
	if diff := cmp.Diff([]string{"field_name", "field_label", "field_label"}, got.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if s, _ := got.Column(2).Cells[1].AsText(); s != "Mood (dup)" {
		t.Fatalf("expected second occurrence aligned, got %v", got.Column(2).Cells[1])
	}
}

func TestAppend_RowCountGrowsByAppendedLength(t *testing.T) {
	acc := New("report", nil)
	sizes := []int{3, 0, 4}
	total := 0
	for _, n := range sizes {
		if err := acc.Append(mustTable(t, table.MissingColumn("x", n))); err != nil {
			t.Fatalf("append: %v", err)
		}
		total += n
		if acc.Data().Len() != total {
			t.Fatalf("expected %d rows, got %d", total, acc.Data().Len())
		}
	}
	if err := acc.Append(nil); err == nil {
		t.Fatalf("expected error on nil table")
	}
}

func TestSetDataType_FirstWins(t *testing.T) {
	acc := New("report", nil)
	if _, ok := acc.DataType(); ok {
		t.Fatalf("expected unset data type")
	}
	label, outcome := acc.SetDataType("ABD Study Questionnaires")
	if label != Questionnaire || outcome != OutcomeFirstSet {
		t.Fatalf("unexpected first call: %s %s", label, outcome)
	}
	label, outcome = acc.SetDataType("ABD questionnaire site 2")
	if label != Questionnaire || outcome != OutcomeConsistent {
		t.Fatalf("unexpected consistent call: %s %s", label, outcome)
	}
	label, outcome = acc.SetDataType("ABD EMA")
	if label != "ema" || outcome != OutcomeConflicting {
		t.Fatalf("unexpected conflicting call: %s %s", label, outcome)
	}
	if stored, _ := acc.DataType(); stored != Questionnaire {
		t.Fatalf("expected stored label kept, got %s", stored)
	}
}

func TestKeywordDeriver(t *testing.T) {
	derive := KeywordDeriver([]Rule{{Keyword: " ", Label: "blank"}, {Keyword: "Sensor", Label: "passive"}})
	cases := map[string]string{
		"Wearable sensors (site A)": "passive",
		"Clinic Visits 2024":        "clinic_visits_2024",
		"  --  ":                    "unknown",
	}
	for title, want := range cases {
		if got := derive(title); got != want {
			t.Fatalf("derive(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeConflicting.String() != "conflicting" || Outcome(0).String() != "outcome(0)" {
		t.Fatalf("unexpected outcome names")
	}
}
