package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hyperifyio/contactx/internal/pipeline"
	"github.com/hyperifyio/contactx/internal/table"
)

// manifestCounts summarizes a result without repeating its values.
type manifestCounts struct {
	Emails       int `json:"emails"`
	PhoneNumbers int `json:"phone_numbers"`
	Companies    int `json:"companies"`
	Persons      int `json:"persons"`
	Rows         int `json:"rows"`
}

// manifest is the sidecar written next to an output when -manifest is set.
type manifest struct {
	Source      string         `json:"source"`
	SHA256      string         `json:"sha256"`
	Chars       int            `json:"chars"`
	Recognizer  string         `json:"recognizer"`
	Model       string         `json:"model,omitempty"`
	Format      string         `json:"format"`
	Output      string         `json:"output"`
	Counts      manifestCounts `json:"counts"`
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func buildManifest(cfg Config, source, text, output string, res pipeline.Result, t table.Table) manifest {
	m := manifest{
		Source:     source,
		SHA256:     computeSHA256Hex(text),
		Chars:      len([]rune(text)),
		Recognizer: recognizerName(cfg),
		Format:     cfg.Format,
		Output:     output,
		Counts: manifestCounts{
			Emails:       len(res.Emails),
			PhoneNumbers: len(res.PhoneNumbers),
			Companies:    len(res.Companies),
			Persons:      len(res.Persons),
			Rows:         t.Len(),
		},
		Version:     BuildVersion,
		GeneratedAt: time.Now().UTC(),
	}
	if m.Recognizer == "llm" {
		m.Model = cfg.LLMModel
	}
	return m
}

func marshalManifestJSON(m manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// deriveManifestSidecarPath returns the sidecar path next to an output file.
func deriveManifestSidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}
