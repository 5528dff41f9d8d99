package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperifyio/contactx/internal/recognizer"
	"github.com/hyperifyio/contactx/internal/robots"
	"github.com/hyperifyio/contactx/internal/validate"
)

// stubRecognizer tags "Acme Corp" as an organization and "John Smith" as a
// person wherever they occur.
type stubRecognizer struct{ calls atomic.Int32 }

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Recognize(_ context.Context, text string) (recognizer.Analysis, error) {
	s.calls.Add(1)
	var a recognizer.Analysis
	for i := 0; i < strings.Count(text, "Acme Corp"); i++ {
		a.Entities = append(a.Entities, recognizer.Entity{Text: "Acme Corp", Label: recognizer.Organization})
	}
	for i := 0; i < strings.Count(text, "John Smith"); i++ {
		a.Entities = append(a.Entities, recognizer.Entity{Text: "John Smith", Label: recognizer.Person})
	}
	return a, nil
}

const sampleText = "John Smith, Acme Corp: john@acme.example, 555-123-4567."

func newTestApp(t *testing.T, cfg Config) (*App, *stubRecognizer) {
	t.Helper()
	rec := &stubRecognizer{}
	a, err := NewWithRecognizer(cfg, rec)
	if err != nil {
		t.Fatalf("NewWithRecognizer: %v", err)
	}
	return a, rec
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestRun_TextToCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	a, _ := newTestApp(t, Config{Text: sampleText, OutputPath: out})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := readCSV(t, out)
	if strings.Join(rows[0], ",") != "Emails,Phone Numbers,Companies,Persons" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	want := []string{"john@acme.example", "5551234567", "Acme Corp", "John Smith"}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Fatalf("want %v, got %v", want, rows[1])
	}
	if _, err := os.Stat(deriveManifestSidecarPath(out)); !os.IsNotExist(err) {
		t.Fatalf("manifest written without -manifest")
	}
}

func TestRun_FileWithManifest(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "card.txt")
	if err := os.WriteFile(in, []byte(sampleText), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	out := filepath.Join(dir, "card.json")
	a, _ := newTestApp(t, Config{Inputs: []string{in}, OutputPath: out, Format: "json", Manifest: true})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil || !bytes.Contains(b, []byte("john@acme.example")) {
		t.Fatalf("unexpected output %s (%v)", b, err)
	}
	mb, err := os.ReadFile(deriveManifestSidecarPath(out))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Source != in || m.Counts.Emails != 1 || m.SHA256 != computeSHA256Hex(sampleText) {
		t.Fatalf("unexpected manifest %+v", m)
	}
}

func TestRun_Stdout(t *testing.T) {
	a, _ := newTestApp(t, Config{Text: sampleText, OutputPath: "-"})
	var buf bytes.Buffer
	a.stdout = &buf
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Emails,Phone Numbers,Companies,Persons") {
		t.Fatalf("unexpected stdout %q", buf.String())
	}
}

func TestRun_EmptyInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(in, []byte("  \n\t"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	a, rec := newTestApp(t, Config{Inputs: []string{in}, OutputPath: filepath.Join(dir, "out.csv")})
	err := a.Run(context.Background())
	if !errors.Is(err, validate.ErrEmptyInput) {
		t.Fatalf("want ErrEmptyInput, got %v", err)
	}
	if rec.calls.Load() != 0 {
		t.Fatalf("recognizer must not run on empty input")
	}
}

func TestRun_TooLarge(t *testing.T) {
	a, _ := newTestApp(t, Config{Text: strings.Repeat("a", 64), MaxInputBytes: 16, OutputPath: filepath.Join(t.TempDir(), "o.csv")})
	if err := a.Run(context.Background()); !errors.Is(err, validate.ErrInputTooLarge) {
		t.Fatalf("want ErrInputTooLarge, got %v", err)
	}
}

func TestRun_RequiresSource(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	if err := a.Run(context.Background()); err == nil {
		t.Fatalf("expected error without a source")
	}
}

func TestRun_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><script>x@hidden.example</script><p>" + sampleText + "</p></body></html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "page.csv")
	a, _ := newTestApp(t, Config{URL: srv.URL, OutputPath: out, CacheDir: filepath.Join(dir, "cache")})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := readCSV(t, out)
	if len(rows) != 2 || rows[1][0] != "john@acme.example" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRun_URLDisallowedByRobots(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /staff\n"))
			return
		}
		pageHits.Add(1)
		_, _ = w.Write([]byte(sampleText))
	}))
	defer srv.Close()

	dir := t.TempDir()
	a, _ := newTestApp(t, Config{URL: srv.URL + "/staff", OutputPath: filepath.Join(dir, "out.csv")})
	a.robots.CheckPrivateHosts = true
	err := a.Run(context.Background())
	if !errors.Is(err, robots.ErrDisallowed) {
		t.Fatalf("want ErrDisallowed, got %v", err)
	}
	if pageHits.Load() != 0 {
		t.Fatalf("disallowed page must not be fetched")
	}

	b, _ := newTestApp(t, Config{URL: srv.URL + "/staff", OutputPath: filepath.Join(dir, "out.csv"), IgnoreRobots: true})
	if b.robots != nil {
		t.Fatalf("robots checker should be disabled")
	}
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run with IgnoreRobots: %v", err)
	}
}

func TestRun_BatchWritesOneFilePerInput(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.txt", "b.md", "sub/a.txt"} {
		p := filepath.Join(dir, "in", name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(sampleText), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		inputs = append(inputs, p)
	}
	outDir := filepath.Join(dir, "out")
	a, rec := newTestApp(t, Config{Inputs: inputs, OutputPath: outDir, Concurrency: 2})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"a.csv", "b.csv", "a-2.csv"} {
		rows := readCSV(t, filepath.Join(outDir, name))
		if len(rows) != 2 {
			t.Fatalf("%s: unexpected rows %v", name, rows)
		}
	}
	if rec.calls.Load() != 3 {
		t.Fatalf("expected 3 recognizer calls, got %d", rec.calls.Load())
	}
}

func TestRun_BatchReportsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	empty := filepath.Join(dir, "empty.txt")
	_ = os.WriteFile(good, []byte(sampleText), 0o644)
	_ = os.WriteFile(empty, nil, 0o644)
	outDir := filepath.Join(dir, "out")

	a, _ := newTestApp(t, Config{Inputs: []string{empty, good}, OutputPath: outDir})
	err := a.Run(context.Background())
	if !errors.Is(err, validate.ErrEmptyInput) {
		t.Fatalf("want ErrEmptyInput in joined error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "good.csv")); err != nil {
		t.Fatalf("good input should still be written: %v", err)
	}
}

func TestExtractDocument_Unsupported(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	_, err := a.ExtractDocument(context.Background(), "photo.png", []byte{1})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestBatchOutputPaths(t *testing.T) {
	got := batchOutputPaths("out", []source{
		{kind: sourceText, ref: "x"},
		{kind: sourceURL, ref: "https://example.com/contact"},
		{kind: sourceFile, ref: "docs/report.final.pdf"},
	}, ".json")
	want := []string{
		filepath.Join("out", "text.json"),
		filepath.Join("out", "example.com.json"),
		filepath.Join("out", "report.final.json"),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNew_RejectsUnknownRecognizer(t *testing.T) {
	if _, err := New(context.Background(), Config{Recognizer: "spacy"}); err == nil {
		t.Fatalf("expected error for unknown recognizer")
	}
}

func TestNew_ProseDefault(t *testing.T) {
	a, err := New(context.Background(), Config{CacheDir: filepath.Join(t.TempDir(), "cache")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	res, err := a.ExtractText(context.Background(), "Write to info@example.com today.")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(res.Emails) != 1 || res.Emails[0] != "info@example.com" {
		t.Fatalf("unexpected emails %v", res.Emails)
	}
}
