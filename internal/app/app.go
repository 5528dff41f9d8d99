// Package app wires configuration, document sources, the extraction
// pipeline and output writers for the contactx binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/contactx/internal/cache"
	"github.com/hyperifyio/contactx/internal/fetch"
	"github.com/hyperifyio/contactx/internal/llm"
	"github.com/hyperifyio/contactx/internal/pipeline"
	"github.com/hyperifyio/contactx/internal/reader"
	"github.com/hyperifyio/contactx/internal/recognizer"
	"github.com/hyperifyio/contactx/internal/robots"
	"github.com/hyperifyio/contactx/internal/table"
	"github.com/hyperifyio/contactx/internal/validate"
)

type App struct {
	cfg     Config
	format  table.Format
	rec     recognizer.Recognizer
	pipe    *pipeline.Pipeline
	fetcher *fetch.Client
	// robots is nil when robots.txt is ignored.
	robots *robots.Checker
	// stdout receives output when OutputPath is "-".
	stdout io.Writer
}

type sourceKind int

const (
	sourceFile sourceKind = iota
	sourceText
	sourceURL
)

// source is one document to extract: a file path, inline text or a URL.
type source struct {
	kind sourceKind
	ref  string
}

func (s source) String() string {
	if s.kind == sourceText {
		return "text"
	}
	return s.ref
}

// New validates cfg, applies cache invalidation and builds the recognizer
// once for the lifetime of the App.
func New(ctx context.Context, cfg Config) (*App, error) {
	cfg = WithDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	prepareCache(cfg)
	rec, err := NewRecognizer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithRecognizer(cfg, rec)
}

// NewWithRecognizer builds an App around an existing recognizer.
func NewWithRecognizer(cfg Config, rec recognizer.Recognizer) (*App, error) {
	cfg = WithDefaults(cfg)
	if rec == nil {
		return nil, errors.New("app: recognizer is required")
	}
	format, err := table.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	f := &fetch.Client{
		HTTPClient:        newHTTPClient(),
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       2,
		PerRequestTimeout: 15 * time.Second,
		RedirectMaxHops:   5,
		MaxBodyBytes:      int64(cfg.MaxInputBytes) * 4,
		BypassCache:       cfg.CacheClear,
	}
	if cfg.CacheDir != "" {
		f.Cache = cache.NewHTTPCache(cfg.CacheDir, cfg.CacheStrictPerms)
	}
	a := &App{
		cfg:     cfg,
		format:  format,
		rec:     rec,
		pipe:    pipeline.New(rec),
		fetcher: f,
		stdout:  os.Stdout,
	}
	if !cfg.IgnoreRobots {
		a.robots = &robots.Checker{
			HTTPClient: f.HTTPClient,
			Cache:      f.Cache,
			UserAgent:  cfg.UserAgent,
		}
	}
	return a, nil
}

// NewRecognizer returns the prose recognizer, or the LLM recognizer layered
// over it when cfg.Recognizer is "llm".
func NewRecognizer(ctx context.Context, cfg Config) (recognizer.Recognizer, error) {
	base, err := recognizer.NewProse(cfg.ProseModelDir)
	if err != nil {
		return nil, fmt.Errorf("init recognizer: %w", err)
	}
	if recognizerName(cfg) != "llm" {
		return base, nil
	}
	client := llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, newHTTPClient())
	llm.Preflight(ctx, client)
	rec := &recognizer.LLM{
		Client:        client,
		Model:         cfg.LLMModel,
		Base:          base,
		SystemPrompt:  cfg.LLMSystemPrompt,
		ContextTokens: cfg.LLMContextTokens,
	}
	if cfg.CacheDir != "" {
		rec.Cache = cache.NewLLMCache(cfg.CacheDir, cfg.CacheStrictPerms)
	}
	log.Info().Str("model", cfg.LLMModel).Str("base", cfg.LLMBaseURL).Msg("llm recognizer enabled")
	return rec, nil
}

func prepareCache(cfg Config) {
	if cfg.CacheDir == "" {
		return
	}
	if cfg.CacheClear {
		if err := cache.ClearDir(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
		}
	}
	if cfg.CacheMaxAge > 0 {
		n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
		if err != nil {
			log.Warn().Err(err).Msg("cache purge failed")
		} else if n > 0 {
			log.Info().Int("removed", n).Dur("maxAge", cfg.CacheMaxAge).Msg("purged cache entries")
		}
	}
}

// Close releases idle connections held by the page fetcher.
func (a *App) Close() {
	if a.fetcher != nil && a.fetcher.HTTPClient != nil {
		a.fetcher.HTTPClient.CloseIdleConnections()
	}
}

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// ExtractText validates and extracts inline text.
func (a *App) ExtractText(ctx context.Context, text string) (pipeline.Result, error) {
	if err := validate.Text(text, a.cfg.MaxInputBytes); err != nil {
		return pipeline.Result{}, err
	}
	return a.pipe.Extract(ctx, text)
}

// ExtractDocument decodes a named document and extracts it.
func (a *App) ExtractDocument(ctx context.Context, name string, data []byte) (pipeline.Result, error) {
	res, _, err := a.extractDocument(ctx, name, data)
	return res, err
}

func (a *App) extractDocument(ctx context.Context, name string, data []byte) (pipeline.Result, string, error) {
	if err := validate.Size(int64(len(data)), a.cfg.MaxInputBytes*4); err != nil {
		return pipeline.Result{}, "", err
	}
	text, err := reader.Read(name, data)
	if err != nil {
		return pipeline.Result{}, "", err
	}
	if err := validate.Text(text, a.cfg.MaxInputBytes); err != nil {
		return pipeline.Result{}, "", fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	res, err := a.pipe.Extract(ctx, text)
	return res, text, err
}

// Run extracts every configured source. A single source writes to
// OutputPath; several sources write one file each into the OutputPath
// directory, processed concurrently.
func (a *App) Run(ctx context.Context) error {
	if err := ValidateRunConfig(a.cfg); err != nil {
		return err
	}
	sources := a.sources()
	if len(sources) == 1 {
		return a.runOne(ctx, sources[0], a.singleOutputPath())
	}
	return a.runBatch(ctx, sources)
}

func (a *App) sources() []source {
	var out []source
	if a.cfg.Text != "" {
		out = append(out, source{kind: sourceText, ref: a.cfg.Text})
	}
	if u := strings.TrimSpace(a.cfg.URL); u != "" {
		out = append(out, source{kind: sourceURL, ref: u})
	}
	for _, in := range a.cfg.Inputs {
		if s := strings.TrimSpace(in); s != "" {
			out = append(out, source{kind: sourceFile, ref: s})
		}
	}
	return out
}

func (a *App) singleOutputPath() string {
	if p := strings.TrimSpace(a.cfg.OutputPath); p != "" {
		return p
	}
	return DefaultOutputName + a.format.Ext()
}

func (a *App) runBatch(ctx context.Context, sources []source) error {
	dir := strings.TrimSpace(a.cfg.OutputPath)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outputs := batchOutputPaths(dir, sources, a.format.Ext())

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, src := range sources {
		src, out := src, outputs[i]
		g.Go(func() error {
			if err := a.runOne(ctx, src, out); err != nil {
				log.Error().Err(err).Str("source", src.String()).Msg("extraction failed")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info().Int("sources", len(sources)).Int("failed", len(errs)).Str("dir", dir).Msg("batch finished")
	return errors.Join(errs...)
}

// batchOutputPaths names one output per source after its file stem,
// suffixing repeated stems with a counter.
func batchOutputPaths(dir string, sources []source, ext string) []string {
	seen := make(map[string]int, len(sources))
	out := make([]string, len(sources))
	for i, src := range sources {
		stem := sourceStem(src)
		seen[stem]++
		if n := seen[stem]; n > 1 {
			stem += "-" + strconv.Itoa(n)
		}
		out[i] = filepath.Join(dir, stem+ext)
	}
	return out
}

func sourceStem(src source) string {
	switch src.kind {
	case sourceText:
		return "text"
	case sourceURL:
		if u, err := url.Parse(src.ref); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return "page"
	default:
		base := filepath.Base(src.ref)
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
			return stem
		}
		return "input"
	}
}

func (a *App) runOne(ctx context.Context, src source, outPath string) error {
	start := time.Now()
	res, text, err := a.extractSource(ctx, src)
	if err != nil {
		return err
	}
	t := table.Assemble(res)
	if err := a.writeTable(outPath, t); err != nil {
		return err
	}
	if a.cfg.Manifest && outPath != "-" {
		m := buildManifest(a.cfg, src.String(), text, outPath, res, t)
		if data, err := marshalManifestJSON(m); err == nil {
			if err := os.WriteFile(deriveManifestSidecarPath(outPath), data, 0o644); err != nil {
				log.Warn().Err(err).Msg("write manifest failed")
			}
		}
	}
	log.Info().
		Str("source", src.String()).
		Str("out", outPath).
		Int("rows", t.Len()).
		Dur("took", time.Since(start)).
		Msg("wrote output")
	return nil
}

func (a *App) extractSource(ctx context.Context, src source) (pipeline.Result, string, error) {
	switch src.kind {
	case sourceText:
		res, err := a.ExtractText(ctx, src.ref)
		return res, src.ref, err
	case sourceURL:
		if a.robots != nil {
			if err := a.robots.Check(ctx, src.ref); err != nil {
				return pipeline.Result{}, "", err
			}
		}
		body, ct, err := a.fetcher.Get(ctx, src.ref)
		if err != nil {
			return pipeline.Result{}, "", fmt.Errorf("fetch %s: %w", src.ref, err)
		}
		name := "page.html"
		if fetch.IsPlainText(ct) {
			name = "page.txt"
		}
		return a.extractDocument(ctx, name, body)
	default:
		info, err := os.Stat(src.ref)
		if err != nil {
			return pipeline.Result{}, "", fmt.Errorf("read input: %w", err)
		}
		if err := validate.Size(info.Size(), a.cfg.MaxInputBytes*4); err != nil {
			return pipeline.Result{}, "", fmt.Errorf("%s: %w", src.ref, err)
		}
		data, err := os.ReadFile(src.ref)
		if err != nil {
			return pipeline.Result{}, "", fmt.Errorf("read input: %w", err)
		}
		return a.extractDocument(ctx, src.ref, data)
	}
}

func (a *App) writeTable(outPath string, t table.Table) error {
	if outPath == "-" {
		return table.Write(a.stdout, t, a.format)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := table.Write(f, t, a.format); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
