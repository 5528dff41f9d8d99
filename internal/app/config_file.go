package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/contactx/internal/table"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Inputs   []string `yaml:"inputs" json:"inputs" toml:"inputs"`
	URL      string   `yaml:"url" json:"url" toml:"url"`
	Output   string   `yaml:"output" json:"output" toml:"output"`
	Format   string   `yaml:"format" json:"format" toml:"format"`
	Manifest bool     `yaml:"manifest" json:"manifest" toml:"manifest"`

	Recognizer string `yaml:"recognizer" json:"recognizer" toml:"recognizer"`
	Prose      struct {
		Model string `yaml:"model" json:"model" toml:"model"`
	} `yaml:"prose" json:"prose" toml:"prose"`

	LLM struct {
		BaseURL      string `yaml:"base" json:"base" toml:"base"`
		Model        string `yaml:"model" json:"model" toml:"model"`
		APIKey       string `yaml:"key" json:"key" toml:"key"`
		SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt" toml:"systemPrompt"`
		Context      int    `yaml:"context" json:"context" toml:"context"`
	} `yaml:"llm" json:"llm" toml:"llm"`

	Cache struct {
		Dir string `yaml:"dir" json:"dir" toml:"dir"`
		// MaxAge is a Go duration string such as "24h".
		MaxAge      string `yaml:"maxAge" json:"maxAge" toml:"maxAge"`
		Clear       bool   `yaml:"clear" json:"clear" toml:"clear"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms" toml:"strictPerms"`
	} `yaml:"cache" json:"cache" toml:"cache"`

	Max struct {
		Bytes int `yaml:"bytes" json:"bytes" toml:"bytes"`
	} `yaml:"max" json:"max" toml:"max"`
	Concurrency int `yaml:"concurrency" json:"concurrency" toml:"concurrency"`

	Robots struct {
		Ignore bool `yaml:"ignore" json:"ignore" toml:"ignore"`
	} `yaml:"robots" json:"robots" toml:"robots"`

	Server struct {
		Listen    string `yaml:"listen" json:"listen" toml:"listen"`
		UploadDir string `yaml:"uploadDir" json:"uploadDir" toml:"uploadDir"`
	} `yaml:"server" json:"server" toml:"server"`

	Log struct {
		File string `yaml:"file" json:"file" toml:"file"`
	} `yaml:"log" json:"log" toml:"log"`
	Verbose bool `yaml:"verbose" json:"verbose" toml:"verbose"`

	cacheMaxAge time.Duration
}

// LoadConfigFile reads YAML, JSON or TOML into FileConfig, chosen by
// extension.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	if s := strings.TrimSpace(fc.Cache.MaxAge); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fc, fmt.Errorf("parse cache.maxAge: %w", err)
		}
		fc.cacheMaxAge = d
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for fields that are unset
// or still at their flag default, so explicit flags and env win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Inputs) == 0 && len(fc.Inputs) > 0 {
		cfg.Inputs = append([]string{}, fc.Inputs...)
	}
	if cfg.URL == "" && fc.URL != "" {
		cfg.URL = fc.URL
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if (cfg.Format == "" || cfg.Format == DefaultFormat) && fc.Format != "" {
		cfg.Format = fc.Format
	}
	if !cfg.Manifest && fc.Manifest {
		cfg.Manifest = true
	}

	if (cfg.Recognizer == "" || cfg.Recognizer == DefaultRecognizer) && fc.Recognizer != "" {
		cfg.Recognizer = fc.Recognizer
	}
	if cfg.ProseModelDir == "" && fc.Prose.Model != "" {
		cfg.ProseModelDir = fc.Prose.Model
	}
	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.LLMSystemPrompt == "" && fc.LLM.SystemPrompt != "" {
		cfg.LLMSystemPrompt = fc.LLM.SystemPrompt
	}
	if cfg.LLMContextTokens == 0 && fc.LLM.Context > 0 {
		cfg.LLMContextTokens = fc.LLM.Context
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.cacheMaxAge > 0 {
		cfg.CacheMaxAge = fc.cacheMaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	if (cfg.MaxInputBytes == 0 || cfg.MaxInputBytes == DefaultMaxBytes) && fc.Max.Bytes > 0 {
		cfg.MaxInputBytes = fc.Max.Bytes
	}
	if (cfg.Concurrency == 0 || cfg.Concurrency == DefaultConcurrency) && fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if (cfg.ListenAddr == "" || cfg.ListenAddr == DefaultListenAddr) && fc.Server.Listen != "" {
		cfg.ListenAddr = fc.Server.Listen
	}
	if cfg.UploadDir == "" && fc.Server.UploadDir != "" {
		cfg.UploadDir = fc.Server.UploadDir
	}
	if cfg.LogFile == "" && fc.Log.File != "" {
		cfg.LogFile = fc.Log.File
	}
	if !cfg.IgnoreRobots && fc.Robots.Ignore {
		cfg.IgnoreRobots = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks settings shared by the CLI and the server.
func ValidateConfig(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Recognizer)) {
	case "", "prose":
	case "llm":
		if strings.TrimSpace(cfg.LLMModel) == "" {
			return errors.New("config: llm.model is required for the llm recognizer (or set LLM_MODEL)")
		}
	default:
		return fmt.Errorf("config: unknown recognizer %q (want prose or llm)", cfg.Recognizer)
	}
	if cfg.Format != "" {
		if _, err := table.ParseFormat(cfg.Format); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if cfg.MaxInputBytes < 0 || cfg.Concurrency < 0 || cfg.CacheMaxAge < 0 || cfg.LLMContextTokens < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}

// ValidateRunConfig also requires a source for a CLI run.
func ValidateRunConfig(cfg Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if len(cfg.Inputs) == 0 && cfg.Text == "" && strings.TrimSpace(cfg.URL) == "" {
		return errors.New("config: one of -input, -text or -url is required")
	}
	if cfg.OutputPath == "-" && sourceCount(cfg) > 1 {
		return errors.New("config: -output - needs a single source")
	}
	return nil
}

func sourceCount(cfg Config) int {
	n := len(cfg.Inputs)
	if cfg.Text != "" {
		n++
	}
	if strings.TrimSpace(cfg.URL) != "" {
		n++
	}
	return n
}

// recognizerName normalizes cfg.Recognizer for logs and manifests.
func recognizerName(cfg Config) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Recognizer), "llm") {
		return "llm"
	}
	return "prose"
}
