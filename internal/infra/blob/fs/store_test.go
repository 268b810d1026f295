package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redcapdl/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "questionnaire_report.csv", strings.NewReader("a,b\n1,2\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "questionnaire_report.csv" || info.Size != 8 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("expected file url, got %s", info.URL)
	}
	h, err := store.Head(ctx, "questionnaire_report.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.Metadata["rows"] != "1" || h.ContentType != "text/csv" {
		t.Fatalf("expected persisted metadata, got %+v", h)
	}
	_, rc, err := store.Get(ctx, "questionnaire_report.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "a,b\n1,2\n" {
		t.Fatalf("unexpected payload %q", b)
	}
	list, err := store.List(ctx, "question")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one listed artifact, got %v %v", list, err)
	}
	ok, err := store.Delete(ctx, "questionnaire_report.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "questionnaire_report.csv"); ok {
		t.Fatalf("expected second delete to report absence")
	}
	if _, err := store.Head(ctx, "questionnaire_report.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "questionnaire_report.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestStore_OverwriteReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	first, err := store.Put(ctx, "ema/variables.csv", strings.NewReader("v1"), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "ema/variables.csv", strings.NewReader("v2"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	second, err := store.Put(ctx, "ema/variables.csv", strings.NewReader("v2 longer"), core.PutOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if second.Size != 9 || second.ETag == first.ETag {
		t.Fatalf("expected replaced content, got %+v", second)
	}
	b, err := os.ReadFile(filepath.Join(store.Root(), "ema", "variables.csv"))
	if err != nil || string(b) != "v2 longer" {
		t.Fatalf("unexpected file content %q %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Join(store.Root(), "ema"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_ExistingFileWithoutSidecarIsProtected(t *testing.T) {
	store := newTempStore(t)
	if err := os.WriteFile(filepath.Join(store.Root(), "legacy.csv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Put(context.Background(), "legacy.csv", strings.NewReader("y"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestSanitizeKeyErrors(t *testing.T) {
	for _, key := range []string{"", "   ", "/abs", "../escape", "a/../../b", "x.meta"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
	if k, err := sanitizeKey("a//b.csv"); err != nil || k != "a/b.csv" {
		t.Fatalf("expected cleaned key, got %q %v", k, err)
	}
}

func TestListSkipsOtherPrefixesAndSorts(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"b.csv", "a.csv", "z/c.csv"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "a.csv" || list[2].Key != "z/c.csv" {
		t.Fatalf("unexpected order %v", list)
	}
	if only, _ := store.List(ctx, "z/"); len(only) != 1 {
		t.Fatalf("expected prefix filter, got %v", only)
	}
}

func TestListMetaCorrupt(t *testing.T) {
	store := newTempStore(t)
	if err := os.WriteFile(filepath.Join(store.Root(), "bad.csv.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := New(filepath.Join(file, "sub")); err == nil {
		t.Fatalf("expected error when root is below a file")
	}
}

func TestStoreMetadataTimestampsUTC(t *testing.T) {
	store := newTempStore(t)
	info, err := store.Put(context.Background(), "t.csv", strings.NewReader("x"), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.LastModified.Location().String() != "UTC" {
		t.Fatalf("expected UTC timestamps, got %v", info.LastModified.Location())
	}
}
