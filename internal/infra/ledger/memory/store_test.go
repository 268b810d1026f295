package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"redcapdl/internal/ledger/core"
)

func TestStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	later := core.Run{ID: "b", Status: core.StatusRunning, StartedAt: base.Add(time.Hour)}
	earlier := core.Run{ID: "a", Status: core.StatusSucceeded, StartedAt: base, Sources: []core.Source{{Title: "ABD EMA"}}}
	for _, r := range []core.Run{later, earlier} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	earlier.Sources[0].Title = "mutated"
	got, err := s.Get(ctx, "a")
	if err != nil || got.Sources[0].Title != "ABD EMA" {
		t.Fatalf("expected stored copy, got %+v %v", got, err)
	}
	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].ID != "a" {
		t.Fatalf("expected oldest first, got %+v", list)
	}
	if _, err := s.Get(ctx, "zzz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, core.Run{}); err == nil {
		t.Fatalf("expected id error")
	}
}
