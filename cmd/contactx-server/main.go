package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contactx/internal/app"
	"github.com/hyperifyio/contactx/internal/server"
	"github.com/hyperifyio/contactx/internal/table"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		listenAddr   string
		uploadDir    string
		format       string
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
		maxBytes     int
		logFile      string
		verbose      bool
		printVersion bool
	)

	flag.StringVar(&listenAddr, "listen", app.DefaultListenAddr, "HTTP listen address")
	flag.StringVar(&uploadDir, "upload.dir", "", "Keep a copy of every uploaded file in this directory")
	flag.StringVar(&format, "format", app.DefaultFormat, "Default response format: csv, json or pdf")
	flag.StringVar(&configPath, "config", "", "Optional YAML, JSON or TOML config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load; missing files are skipped")
	flag.StringVar(&recognizer, "recognizer", app.DefaultRecognizer, "Entity recognizer: prose or llm")
	flag.StringVar(&proseModel, "prose.model", "", "Directory of a custom prose model (default: embedded English model)")
	flag.StringVar(&llmBaseURL, "llm.base", "", "OpenAI-compatible base URL for -recognizer llm")
	flag.StringVar(&llmModel, "llm.model", "", "Model name for -recognizer llm")
	flag.StringVar(&llmKey, "llm.key", "", "API key for the OpenAI-compatible server")
	flag.IntVar(&llmContext, "llm.context", 0, "Model context window in tokens; 0 guesses from -llm.model")
	flag.StringVar(&cacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory for model answers")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this at startup; 0 disables")
	flag.IntVar(&maxBytes, "max.bytes", app.DefaultMaxBytes, "Maximum extracted text size per document in bytes")
	flag.StringVar(&logFile, "log.file", "", "Also write JSON logs to this rotating file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&printVersion, "version", false, "Print version and exit")
	flag.Parse()

	if printVersion {
		fmt.Println(app.VersionString("contactx-server"))
		return
	}

	var envList []string
	for _, p := range strings.Split(envFiles, ",") {
		if v := strings.TrimSpace(p); v != "" {
			envList = append(envList, v)
		}
	}
	if err := app.LoadEnvFiles(envList...); err != nil {
		log.Fatal().Err(err).Msg("load env files")
	}

	cfg := app.Config{
		ListenAddr:       listenAddr,
		UploadDir:        uploadDir,
		Format:           format,
		Recognizer:       recognizer,
		ProseModelDir:    proseModel,
		LLMBaseURL:       llmBaseURL,
		LLMModel:         llmModel,
		LLMAPIKey:        llmKey,
		LLMContextTokens: llmContext,
		CacheDir:         cacheDir,
		CacheMaxAge:      cacheMaxAge,
		MaxInputBytes:    maxBytes,
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

	if err := serve(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server failed")
		closer.Close()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	eff := a.Config()
	format, err := table.ParseFormat(eff.Format)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: eff.ListenAddr,
		Handler: server.New(a, server.Options{
			MaxUploadBytes: int64(eff.MaxInputBytes) * 4,
			UploadDir:      eff.UploadDir,
			DefaultFormat:  format,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", eff.ListenAddr).Str("recognizer", eff.Recognizer).Msg("contactx-server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
