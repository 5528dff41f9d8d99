// Package server exposes extraction over HTTP: an upload form, a multipart
// upload endpoint that answers with the assembled table, and a health check.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contactx/internal/pipeline"
	"github.com/hyperifyio/contactx/internal/reader"
	"github.com/hyperifyio/contactx/internal/table"
	"github.com/hyperifyio/contactx/internal/validate"
)

// Messages returned to clients; details are only logged.
const (
	msgEmpty       = "The file is empty or could not be read."
	msgTooLarge    = "The document is too large."
	msgUnsupported = "Unsupported file type."
	msgFailed      = "Extraction failed."

	downloadName = "extracted_information"
	// multipartOverhead allows for form boundaries and the other fields.
	multipartOverhead = 1 << 20
)

// Extractor is the extraction surface the server needs.
type Extractor interface {
	ExtractText(ctx context.Context, text string) (pipeline.Result, error)
	ExtractDocument(ctx context.Context, name string, data []byte) (pipeline.Result, error)
}

// Options configures a Server.
type Options struct {
	// MaxUploadBytes caps the request body. Zero means four times the
	// default text limit.
	MaxUploadBytes int64
	// UploadDir, when set, receives a copy of every uploaded file.
	UploadDir string
	// DefaultFormat is used when the form has no format field.
	DefaultFormat table.Format
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

type Server struct {
	ext  Extractor
	opts Options
	mux  *http.ServeMux
}

// New builds the routes. The upload directory is created on demand.
func New(ext Extractor, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 4 * validate.DefaultMaxInputBytes
	}
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = table.CSV
	}
	if opts.Logger == nil {
		opts.Logger = &log.Logger
	}
	s := &Server{ext: ext, opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the routes wrapped with request logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("took", d).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	return hlog.NewHandler(*s.opts.Logger)(h)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Contact extraction</title>
</head>
<body>
<h1>Extract contact information</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
<p><label>Document <input type="file" name="file" accept="{{.Accept}}"></label></p>
<p><label>Or paste text<br><textarea name="text_input" rows="12" cols="80"></textarea></label></p>
<p><label>Format <select name="format">
{{range .Formats}}<option value="{{.}}">{{.}}</option>
{{end}}</select></label></p>
<p><button type="submit">Extract</button></p>
</form>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Accept  string
		Formats []table.Format
	}{Accept: strings.Join(reader.Extensions(), ","), Formats: []table.Format{table.CSV, table.JSON, table.PDF}}
	if err := indexTemplate.Execute(w, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn().Err(err).Msg("parse form")
		http.Error(w, msgEmpty, http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	format := s.opts.DefaultFormat
	if v := r.FormValue("format"); v != "" {
		f, err := table.ParseFormat(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	var (
		res pipeline.Result
		err error
	)
	file, header, ferr := r.FormFile("file")
	switch {
	case ferr == nil && header.Filename != "":
		defer file.Close()
		res, err = s.extractUpload(r.Context(), file, header.Filename, header.Size)
	case r.FormValue("text_input") != "":
		res, err = s.ext.ExtractText(r.Context(), r.FormValue("text_input"))
	default:
		if ferr == nil {
			file.Close()
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		status, msg := classify(err)
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(err).Int("status", status).Msg("upload rejected")
		http.Error(w, msg, status)
		return
	}

	var buf bytes.Buffer
	if err := table.Write(&buf, table.Assemble(res), format); err != nil {
		logger.Error().Err(err).Msg("encode table")
		http.Error(w, msgFailed, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName+format.Ext()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) extractUpload(ctx context.Context, file io.Reader, filename string, size int64) (pipeline.Result, error) {
	name := SecureFilename(filename)
	if !reader.Supported(name) {
		return pipeline.Result{}, fmt.Errorf("%w: %s", reader.ErrUnsupportedFormat, name)
	}
	if err := validate.Size(size, int(s.opts.MaxUploadBytes)); err != nil {
		return pipeline.Result{}, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: %v", reader.ErrUnreadable, err)
	}
	if s.opts.UploadDir != "" {
		s.store(name, data)
	}
	return s.ext.ExtractDocument(ctx, name, data)
}

func (s *Server) store(name string, data []byte) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", s.opts.UploadDir).Msg("create upload dir")
		return
	}
	path := filepath.Join(s.opts.UploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("store upload")
	}
}

// classify maps extraction errors to a status and a client-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validate.ErrEmptyInput), errors.Is(err, reader.ErrUnreadable):
		return http.StatusBadRequest, msgEmpty
	case errors.Is(err, validate.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, reader.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, msgUnsupported
	default:
		return http.StatusInternalServerError, msgFailed
	}
}
