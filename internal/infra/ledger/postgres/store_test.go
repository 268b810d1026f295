package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"redcapdl/internal/infra/ledger/postgres/testutil"
	"redcapdl/internal/ledger/core"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, conn
}

func TestNewCreatesRunsTable(t *testing.T) {
	_, conn := openStub(t)
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS runs") {
		t.Fatalf("expected runs DDL, got %v", conn.Execs)
	}
}

func TestSaveUpsertsAndGetDecodes(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	run := core.Run{ID: "r1", Status: core.StatusRunning, StartedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.Status = core.StatusSucceeded
	run.Artifacts = []core.Artifact{{Key: "ema_report.csv", Size: 10}}
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := len(conn.Tables["runs"]); n != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", n)
	}
	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusSucceeded || len(got.Artifacts) != 1 {
		t.Fatalf("unexpected run %+v", got)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := store.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one listed run, got %v %v", list, err)
	}
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	run := core.Run{ID: "r1", StartedAt: time.Now()}

	conn.FailBegin = true
	if err := store.Save(ctx, run); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if err := store.Save(ctx, run); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	conn.FailCommit = false
	if err := store.Save(ctx, core.Run{}); err == nil {
		t.Fatalf("expected id error")
	}
}

func TestNewPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := New(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ping failure")
	}
}
