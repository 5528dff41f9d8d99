package app

import (
	"time"

	"github.com/hyperifyio/contactx/internal/validate"
)

// Defaults shared by flag parsing and the env/file overlays, which only
// replace values still at these defaults.
const (
	DefaultRecognizer  = "prose"
	DefaultFormat      = "csv"
	DefaultCacheDir    = ".contactx-cache"
	DefaultConcurrency = 4
	DefaultListenAddr  = ":8080"
	DefaultUserAgent   = "contactx/1.0 (+https://github.com/hyperifyio/contactx)"
	DefaultMaxBytes    = validate.DefaultMaxInputBytes
	// DefaultOutputName is used when a single input has no -output.
	DefaultOutputName = "extracted_information"
)

// Config holds runtime configuration for the CLI and the server.
type Config struct {
	// Sources; at least one is required for Run.
	Inputs []string
	Text   string
	URL    string

	// OutputPath is a file, "-" for stdout, or a directory in batch mode.
	OutputPath string
	Format     string
	Manifest   bool

	// Recognizer is "prose" or "llm".
	Recognizer    string
	ProseModelDir string

	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	LLMSystemPrompt string
	// LLMContextTokens overrides the context window guessed from LLMModel.
	LLMContextTokens int

	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	UserAgent     string
	IgnoreRobots  bool
	MaxInputBytes int
	Concurrency   int

	// Server
	ListenAddr string
	UploadDir  string

	LogFile string
	Verbose bool
}

// WithDefaults returns cfg with zero values replaced by the package defaults.
func WithDefaults(cfg Config) Config {
	if cfg.Recognizer == "" {
		cfg.Recognizer = DefaultRecognizer
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxInputBytes == 0 {
		cfg.MaxInputBytes = DefaultMaxBytes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return cfg
}
