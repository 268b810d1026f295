package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"", "none", "NONE"} {
		s, err := Open(ctx, Config{Driver: driver})
		if err != nil || s != nil {
			t.Fatalf("expected disabled ledger for %q, got %v %v", driver, s, err)
		}
	}
	mem, err := Open(ctx, Config{Driver: "memory"})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("expected memory ledger, got %v", err)
	}
	dir := t.TempDir()
	lite, err := Open(ctx, Config{Driver: "sqlite", Dir: dir})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = lite.Close() }()
	run := Run{ID: "x", Status: StatusRunning, StartedAt: time.Now().UTC()}
	if err := lite.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, DefaultSQLiteFile)); len(matches) != 1 {
		t.Fatalf("expected default database below dir, got %v", matches)
	}
	if _, err := Open(ctx, Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestRunClone(t *testing.T) {
	done := time.Now()
	r := Run{ID: "a", FinishedAt: &done, Sources: []Source{{Title: "x"}}}
	c := r.Clone()
	c.Sources[0].Title = "y"
	*c.FinishedAt = done.Add(time.Hour)
	if r.Sources[0].Title != "x" || !r.FinishedAt.Equal(done) {
		t.Fatalf("clone shares state with original")
	}
}
