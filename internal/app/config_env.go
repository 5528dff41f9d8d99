package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates fields of cfg that are unset or still at their
// default from environment variables. Explicit cfg values take precedence.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, def, key string) {
		if *dst != "" && *dst != def {
			return
		}
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Recognizer, DefaultRecognizer, "RECOGNIZER")
	setString(&cfg.ProseModelDir, "", "PROSE_MODEL_DIR")
	setString(&cfg.LLMBaseURL, "", "LLM_BASE_URL")
	setString(&cfg.LLMModel, "", "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "", "LLM_API_KEY")
	setString(&cfg.CacheDir, DefaultCacheDir, "CACHE_DIR")
	setString(&cfg.ListenAddr, DefaultListenAddr, "LISTEN_ADDR")
	setString(&cfg.UploadDir, "", "UPLOAD_DIR")
	setString(&cfg.LogFile, "", "LOG_FILE")

	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}

	setInt := func(dst *int, def int, key string) {
		if *dst != 0 && *dst != def {
			return
		}
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	setInt(&cfg.MaxInputBytes, DefaultMaxBytes, "MAX_INPUT_BYTES")
	setInt(&cfg.Concurrency, DefaultConcurrency, "CONCURRENCY")
	setInt(&cfg.LLMContextTokens, 0, "LLM_CONTEXT_TOKENS")

	if !cfg.IgnoreRobots {
		cfg.IgnoreRobots = envBool("ROBOTS_IGNORE")
	}
	if !cfg.Verbose {
		cfg.Verbose = envBool("VERBOSE")
	}
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
