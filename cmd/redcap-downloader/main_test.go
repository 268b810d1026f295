package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	tokenA = "AAAAAAAAAAAAAAAAAAAAAAAAAAAA1111"
	tokenB = "BBBBBBBBBBBBBBBBBBBBBBBBBBBB2222"
)

func fakeREDCap(t *testing.T) *httptest.Server {
	t.Helper()
	projects := map[string]map[string]string{
		tokenA: {
			"project":  `{"project_title":"ABD EMA"}`,
			"metadata": "field_name,form_name\nparticipant_id,intake\nmood,daily\n",
			"record":   "participant_id,redcap_repeat_instrument,mood,comments\n4,,,\n,daily,3,ok\n,daily,5,old notes\n",
		},
		tokenB: {
			"project":  `{"project_title":"ABD EMA site B"}`,
			"metadata": "field_name,form_name\nmood,daily\n",
			"record":   "participant_id,redcap_repeat_instrument,mood\n12,daily,1\n",
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		answers, ok := projects[r.PostForm.Get("token")]
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(answers[r.PostForm.Get("content")]))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, apiURL, dir string, tokens ...string) string {
	t.Helper()
	body := fmt.Sprintf(`tokens: [%s]
api_url: %s
download_folder: %s
report_text_columns: [comments]
replacements:
  old: new
ledger:
  driver: sqlite
metrics:
  textfile_path: %s
`, strings.Join(tokens, ", "), apiURL, dir, filepath.Join(dir, "metrics", "redcapdl.prom"))
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCLI_Download(t *testing.T) {
	srv := fakeREDCap(t)
	dir := t.TempDir()
	cfg := writeConfig(t, srv.URL, dir, tokenA, tokenB)

	var stdout, stderr bytes.Buffer
	if code := cli([]string{"--config", cfg}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "succeeded: 2 sources, 2 artifacts") {
		t.Fatalf("unexpected summary %q", stdout.String())
	}
	report, err := os.ReadFile(filepath.Join(dir, "ema_report.csv"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	want := "participant_id,redcap_repeat_instrument,mood,comments\nABD004,,,\nABD004,daily,3,ok\nABD004,daily,5,new notes\nABD012,daily,1,\n"
	if string(report) != want {
		t.Fatalf("unexpected report:\n%s", report)
	}
	for _, name := range []string{
		"ema_variables.csv",
		"redcapdl-runs.db",
		filepath.Join("metrics", "redcapdl.prom"),
		"download_" + time.Now().Format("20060102") + ".log",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if strings.Contains(stderr.String(), tokenA) {
		t.Fatalf("token leaked into logs")
	}
}

func TestCLI_DownloadFailsOnBadToken(t *testing.T) {
	srv := fakeREDCap(t)
	dir := t.TempDir()
	cfg := writeConfig(t, srv.URL, dir, tokenA, "WRONGWRONGWRONG9999")
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-c", cfg}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr.String(), "HTTP 403") {
		t.Fatalf("expected API error in output, got %s", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "ema_report.csv")); !os.IsNotExist(err) {
		t.Fatalf("expected no artifacts after a failed source")
	}
}

func TestCLI_Check(t *testing.T) {
	srv := fakeREDCap(t)
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"check", "--config", writeConfig(t, srv.URL, dir, tokenA)}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "1111\tok") {
		t.Fatalf("unexpected check output %q", stdout.String())
	}
	stdout.Reset()
	if code := cli([]string{"check", "--config", writeConfig(t, srv.URL, dir, tokenA, "WRONGWRONGWRONG9999")}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure for bad token")
	}
	if !strings.Contains(stdout.String(), "9999\tfailed") {
		t.Fatalf("expected failed line, got %q", stdout.String())
	}
}

func TestCLI_VersionAndConfigErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"version"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), version) {
		t.Fatalf("unexpected version output %q (%d)", stdout.String(), code)
	}
	if code := cli([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected missing config failure")
	}
	if code := cli([]string{"--no-such-flag"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected flag failure")
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"redcap-downloader", "version"}
	main()
	if len(codes) != 1 || codes[0] != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
