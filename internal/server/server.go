// Package server implements the flowlevel HTTP API.
//
// The API exposes the legalization pipeline over HTTP:
//
//	POST /api/legalize      legalize a TOML manifest body, returns the report
//	GET  /api/reports       list archived reports
//	GET  /api/reports/{id}  fetch an archived report
//	DELETE /api/reports/{id}  remove an archived report
//	GET  /healthz           liveness probe
//
// Error responses are JSON envelopes carrying a machine-readable code:
//
//	{"error": {"code": "INVALID_MANIFEST", "message": "..."}}
package server

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mhersch/flowlevel/pkg/errors"
	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/pipeline"
	"github.com/mhersch/flowlevel/pkg/report"
	"github.com/mhersch/flowlevel/pkg/store"
)

// maxManifestBytes bounds the accepted manifest body size.
const maxManifestBytes = 1 << 20

// Server wires the pipeline runner and report store into an HTTP handler.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	logger *log.Logger
}

// New creates a server. A nil logger falls back to log.Default.
func New(runner *pipeline.Runner, st store.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, store: st, logger: logger}
}

// Handler builds the chi router with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/legalize", s.handleLegalize)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Delete("/reports/{id}", s.handleDeleteReport)
	})

	return r
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// handleHealth responds to liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleLegalize runs the pipeline on the TOML manifest in the request body.
//
// Query parameters:
//   - insert_copy: "false" to merge levels instead of inserting copies
//   - min_gran: minimum merge granularity (integer, default 1)
//   - refresh: "true" to bypass the report cache
//   - archive: "true" to store the report
func (s *Server) handleLegalize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes))
	if err != nil || len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidManifest, "request body must be a TOML manifest"))
		return
	}

	opts, err := legalizeOptions(r, string(body))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, legalizeStatus(err), classifyLegalizeError(err))
		return
	}

	if r.URL.Query().Get("archive") == "true" {
		if err := s.store.Put(r.Context(), result.Report); err != nil {
			s.writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "archive report"))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Report-Hash", result.ReportHash)
	if result.CacheInfo.LegalizeHit {
		w.Header().Set("X-Cache", "hit")
	}
	_, _ = w.Write(result.Artifacts[pipeline.FormatJSON])
}

// handleListReports returns summaries of archived reports, newest first.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "list reports"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": summaries})
}

// handleGetReport fetches one archived report by ID.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := s.store.Get(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New(errors.ErrCodeReportNotFound, "report %s not found", id))
			return
		}
		s.writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "get report"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := report.WriteJSON(rep, w); err != nil {
		s.logger.Error("write report response", "id", id, "error", err)
	}
}

// handleDeleteReport removes one archived report by ID.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New(errors.ErrCodeReportNotFound, "report %s not found", id))
			return
		}
		s.writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "delete report"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// legalizeOptions builds pipeline options from the query string.
func legalizeOptions(r *http.Request, manifest string) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		Manifest: manifest,
		Merge:    q.Get("insert_copy") == "false",
		Refresh:  q.Get("refresh") == "true",
		Formats:  []string{pipeline.FormatJSON},
	}
	if v := q.Get("min_gran"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid min_gran: %q", v)
		}
		opts.MinGran = n
	}
	return opts, nil
}

// classifyLegalizeError maps pipeline failures to coded errors: scheduling
// failures keep their own code, everything else is treated as a bad manifest.
func classifyLegalizeError(err error) error {
	var lerr *legalize.Error
	if stderrors.As(err, &lerr) {
		return errors.Wrap(errors.ErrCodeLegalization, err, "legalization failed")
	}
	return errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid manifest")
}

// legalizeStatus picks the HTTP status for a pipeline failure.
func legalizeStatus(err error) int {
	var lerr *legalize.Error
	if stderrors.As(err, &lerr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
