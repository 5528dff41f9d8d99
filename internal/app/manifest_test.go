package app

import (
	"encoding/json"
	"testing"

	"github.com/hyperifyio/contactx/internal/pipeline"
	"github.com/hyperifyio/contactx/internal/table"
)

func TestBuildManifest_CountsAndDigest(t *testing.T) {
	res := pipeline.Result{
		Emails:       []string{"a@example.com", "b@example.com"},
		PhoneNumbers: []string{"5551234567"},
		Companies:    []string{},
		Persons:      []string{"John Smith"},
	}
	cfg := WithDefaults(Config{Recognizer: "llm", LLMModel: "test-model"})
	m := buildManifest(cfg, "in.txt", "hello", "out.csv", res, table.Assemble(res))
	if m.Counts.Emails != 2 || m.Counts.PhoneNumbers != 1 || m.Counts.Persons != 1 || m.Counts.Rows != 2 {
		t.Fatalf("unexpected counts: %+v", m.Counts)
	}
	if m.SHA256 != computeSHA256Hex("hello") || len(m.SHA256) != 64 {
		t.Fatalf("unexpected digest %q", m.SHA256)
	}
	if m.Recognizer != "llm" || m.Model != "test-model" {
		t.Fatalf("unexpected recognizer fields: %+v", m)
	}
	b, err := marshalManifestJSON(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["source"] != "in.txt" {
		t.Fatalf("source missing: %s", b)
	}
}

func TestBuildManifest_ProseOmitsModel(t *testing.T) {
	cfg := WithDefaults(Config{LLMModel: "unused"})
	m := buildManifest(cfg, "x", "", "-", pipeline.Result{}, table.Table{})
	if m.Recognizer != "prose" || m.Model != "" {
		t.Fatalf("unexpected: %+v", m)
	}
}

func TestDeriveManifestSidecarPath(t *testing.T) {
	if got := deriveManifestSidecarPath("out/a.csv"); got != "out/a.csv.manifest.json" {
		t.Fatalf("got %q", got)
	}
}
