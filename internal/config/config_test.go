package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"redcapdl/internal/blob"
	"redcapdl/internal/cleaning"
	"redcapdl/internal/export"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redcapdl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
tokens:
  - AAAA1111
  - BBBB2222
download_folder: /data/abd
log_level: DEBUG
id_tag: ABD
report_text_columns: [comments]
replacements:
  "old": "new"
  "new": "newer"
  "\n": " "
export:
  formats: [csv, parquet]
  prefix: abd
ledger:
  driver: sqlite
  dsn: /data/abd/runs.db
`

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Replacements{{Old: "old", New: "new"}, {Old: "new", New: "newer"}, {Old: "\n", New: " "}}
	if diff := cmp.Diff(want, cfg.Replacements); diff != "" {
		t.Fatalf("replacements order (-want +got):\n%s", diff)
	}
	if !cfg.Debug() || cfg.DownloadFolder != "/data/abd" || len(cfg.Tokens) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	formats, _ := cfg.Formats()
	if diff := cmp.Diff([]export.Format{export.FormatCSV, export.FormatParquet}, formats); diff != "" {
		t.Fatalf("formats (-want +got):\n%s", diff)
	}
	bc := cfg.BlobStore()
	if bc.Driver != blob.DriverFilesystem || bc.FSRoot != "/data/abd" {
		t.Fatalf("expected fs driver rooted at download folder, got %+v", bc)
	}
	if len(cfg.DataTypes) != 2 {
		t.Fatalf("expected default data type rules, got %v", cfg.DataTypes)
	}
	opts := cfg.CleaningOptions()
	if opts.IDTag != cleaning.DefaultIDTag || len(opts.Replacements) != 3 {
		t.Fatalf("unexpected cleaning options %+v", opts)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDCAPDL_TOKENS", " CCCC3333 , ,DDDD4444")
	t.Setenv("REDCAPDL_DOWNLOAD_FOLDER", "/tmp/out")
	t.Setenv("REDCAPDL_BLOB_DRIVER", "s3")
	t.Setenv("REDCAPDL_BLOB_S3_BUCKET", "abd-artifacts")
	t.Setenv("REDCAPDL_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("REDCAPDL_LEDGER_DRIVER", "memory")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"CCCC3333", "DDDD4444"}, cfg.Tokens); diff != "" {
		t.Fatalf("tokens (-want +got):\n%s", diff)
	}
	if cfg.DownloadFolder != "/tmp/out" || cfg.Blob.S3.Bucket != "abd-artifacts" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.Ledger.Driver != "memory" {
		t.Fatalf("expected ledger override, got %s", cfg.Ledger.Driver)
	}
}

func TestLoad_InvalidPathStyle(t *testing.T) {
	t.Setenv("REDCAPDL_TOKENS", "x")
	t.Setenv("REDCAPDL_BLOB_S3_PATH_STYLE", "sometimes")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected bool parse error")
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.DownloadFolder = " "
	cfg.Export.Formats = []string{"xlsx"}
	cfg.Blob.Driver = "ftp"
	cfg.Ledger.Driver = "mysql"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"no REDCap tokens", "download_folder", "xlsx", "ftp", "mysql"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	cfg := Default()
	cfg.Tokens = []string{"x"}
	cfg.Blob.Driver = "s3"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := Load(writeConfig(t, "replacements: [a, b]\n")); err == nil {
		t.Fatalf("expected mapping error")
	}
}

func TestReplacements_MarshalKeepsOrder(t *testing.T) {
	in := Replacements{{Old: "z", New: "1"}, {Old: "a", New: "2"}}
	b, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "z: \"1\"\na: \"2\"\n" {
		t.Fatalf("unexpected yaml %q", b)
	}
}
