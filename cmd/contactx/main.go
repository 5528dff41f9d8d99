package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contactx/internal/app"
	"github.com/hyperifyio/contactx/internal/validate"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		inputs       string
		text         string
		pageURL      string
		outputPath   string
		format       string
		manifest     bool
		configPath   string
		envFiles     string
		recognizer   string
		proseModel   string
		llmBaseURL   string
		llmModel     string
		llmKey       string
		llmContext   int
		cacheDir     string
		cacheMaxAge  time.Duration
		cacheClear   bool
		cacheStrict  bool
		ignoreRobots bool
		maxBytes     int
		concurrency  int
		logFile      string
		verbose      bool
		printVersion bool
	)

	flag.StringVar(&inputs, "input", "", "Comma-separated document paths (.txt, .md, .csv, .html, .docx, .pdf, .eml); positional args are appended")
	flag.StringVar(&text, "text", "", "Inline text to extract from")
	flag.StringVar(&pageURL, "url", "", "Fetch and extract a web page (HTML or plain text)")
	flag.StringVar(&outputPath, "output", "", "Output file, '-' for stdout, or a directory with several inputs (default extracted_information.<format>)")
	flag.StringVar(&format, "format", app.DefaultFormat, "Output format: csv, json or pdf")
	flag.BoolVar(&manifest, "manifest", false, "Write a <output>.manifest.json sidecar with digests and counts")
	flag.StringVar(&configPath, "config", "", "Optional YAML, JSON or TOML config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load; missing files are skipped")
	flag.StringVar(&recognizer, "recognizer", app.DefaultRecognizer, "Entity recognizer: prose or llm")
	flag.StringVar(&proseModel, "prose.model", "", "Directory of a custom prose model (default: embedded English model)")
	flag.StringVar(&llmBaseURL, "llm.base", "", "OpenAI-compatible base URL for -recognizer llm")
	flag.StringVar(&llmModel, "llm.model", "", "Model name for -recognizer llm")
	flag.StringVar(&llmKey, "llm.key", "", "API key for the OpenAI-compatible server")
	flag.IntVar(&llmContext, "llm.context", 0, "Model context window in tokens; 0 guesses from -llm.model")
	flag.StringVar(&cacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory for fetched pages and model answers")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this (e.g. 24h); 0 disables")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear the cache directory before the run")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.BoolVar(&ignoreRobots, "robots.ignore", false, "Fetch -url pages even when robots.txt disallows them")
	flag.IntVar(&maxBytes, "max.bytes", app.DefaultMaxBytes, "Maximum extracted text size per document in bytes")
	flag.IntVar(&concurrency, "concurrency", app.DefaultConcurrency, "Documents processed in parallel with several inputs")
	flag.StringVar(&logFile, "log.file", "", "Also write JSON logs to this rotating file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&printVersion, "version", false, "Print version and exit")
	flag.Parse()

	if printVersion {
		fmt.Println(app.VersionString("contactx"))
		return
	}

	if err := app.LoadEnvFiles(splitList(envFiles)...); err != nil {
		log.Fatal().Err(err).Msg("load env files")
	}

	cfg := app.Config{
		Inputs:           append(splitList(inputs), flag.Args()...),
		Text:             text,
		URL:              pageURL,
		OutputPath:       outputPath,
		Format:           format,
		Manifest:         manifest,
		Recognizer:       recognizer,
		ProseModelDir:    proseModel,
		LLMBaseURL:       llmBaseURL,
		LLMModel:         llmModel,
		LLMAPIKey:        llmKey,
		LLMContextTokens: llmContext,
		CacheDir:         cacheDir,
		CacheMaxAge:      cacheMaxAge,
		CacheClear:       cacheClear,
		CacheStrictPerms: cacheStrict,
		IgnoreRobots:     ignoreRobots,
		MaxInputBytes:    maxBytes,
		Concurrency:      concurrency,
		LogFile:          logFile,
		Verbose:          verbose,
	}
	app.ApplyEnvToConfig(&cfg)
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("load config file")
		}
		app.ApplyFileConfig(&cfg, fc)
	}

	closer := app.SetupLogging(cfg.Verbose, cfg.LogFile)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		closer.Close()
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg app.Config) error {
	if err := app.ValidateRunConfig(app.WithDefaults(cfg)); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

// exitCode is 2 for an empty document and 1 for every other failure.
func exitCode(err error) int {
	if errors.Is(err, validate.ErrEmptyInput) {
		return 2
	}
	return 1
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
