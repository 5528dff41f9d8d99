package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR='beta'\nmalformed\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestLoadEnvFiles_KeepsProcessEnv(t *testing.T) {
	t.Setenv("LLM_MODEL", "from-shell")
	p := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(p, []byte("LLM_MODEL=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := LoadEnvFiles(p); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("LLM_MODEL"); got != "from-shell" {
		t.Fatalf("process env overridden: %q", got)
	}
}

func TestApplyEnvToConfig_FillsUnsetAndDefaults(t *testing.T) {
	t.Setenv("RECOGNIZER", "llm")
	t.Setenv("LLM_MODEL", "local-model")
	t.Setenv("LLM_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("CACHE_DIR", "/tmp/contactx-cache")
	t.Setenv("CACHE_MAX_AGE", "36h")
	t.Setenv("MAX_INPUT_BYTES", "4096")
	t.Setenv("CONCURRENCY", "not-a-number")
	t.Setenv("VERBOSE", "yes")
	t.Setenv("ROBOTS_IGNORE", "1")

	cfg := Config{Recognizer: DefaultRecognizer, CacheDir: DefaultCacheDir, Concurrency: DefaultConcurrency}
	ApplyEnvToConfig(&cfg)
	if cfg.Recognizer != "llm" || cfg.LLMModel != "local-model" || cfg.LLMBaseURL != "http://localhost:1234/v1" {
		t.Fatalf("llm settings not applied: %+v", cfg)
	}
	if cfg.CacheDir != "/tmp/contactx-cache" || cfg.CacheMaxAge != 36*time.Hour {
		t.Fatalf("cache settings not applied: %+v", cfg)
	}
	if cfg.MaxInputBytes != 4096 {
		t.Fatalf("MaxInputBytes=%d, want 4096", cfg.MaxInputBytes)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Fatalf("invalid CONCURRENCY must be ignored, got %d", cfg.Concurrency)
	}
	if !cfg.Verbose {
		t.Fatalf("VERBOSE=yes should enable verbose")
	}
	if !cfg.IgnoreRobots {
		t.Fatalf("ROBOTS_IGNORE=1 should disable robots checks")
	}
}

func TestApplyEnvToConfig_ExplicitWins(t *testing.T) {
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("CONCURRENCY", "9")
	cfg := Config{LLMModel: "flag-model", Concurrency: 2}
	ApplyEnvToConfig(&cfg)
	if cfg.LLMModel != "flag-model" || cfg.Concurrency != 2 {
		t.Fatalf("explicit values overridden: %+v", cfg)
	}
}
