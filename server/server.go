// Package server exposes the extraction engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/omtx/go-extract-orders/auth"
	"github.com/omtx/go-extract-orders/config"
	"github.com/omtx/go-extract-orders/fetch"
	"github.com/omtx/go-extract-orders/models"
	"github.com/omtx/go-extract-orders/scraper"
)

// Extractor is the engine surface the HTTP layer drives.
type Extractor interface {
	ExtractFull(ctx context.Context, opts scraper.FullOptions) (*models.ExtractionResult, error)
	ExtractIncremental(ctx context.Context, lastOrderID int) (*models.ExtractionResult, error)
	RawPage(ctx context.Context, page int, backend string) (*scraper.RawPageResult, error)
}

// Server routes extraction requests to the engine.
type Server struct {
	cfg       *config.Config
	extractor Extractor
	router    chi.Router
}

// New builds the HTTP layer over an extractor.
func New(cfg *config.Config, extractor Extractor) *Server {
	s := &Server{cfg: cfg, extractor: extractor}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/pedidos/full", s.handleFull)
		r.Get("/pedidos/incremental", s.handleIncremental)
		r.Get("/debug/raw-page", s.handleRawPage)
	})

	s.router = r
	return s
}

// Handler returns the root handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// runResponse is an extraction result plus the run metadata that is kept
// out of the exported vendor payload.
type runResponse struct {
	*models.ExtractionResult
	RunID          string `json:"run_id"`
	Backend        string `json:"backend"`
	CursorAdvanced bool   `json:"cursor_advanced"`
	DetailFailures int    `json:"detail_failures"`
	SkippedRows    int    `json:"skipped_rows"`
	PagesFetched   int    `json:"pages_fetched"`
	ExportFile     string `json:"export_file,omitempty"`
}

func newRunResponse(result *models.ExtractionResult) runResponse {
	return runResponse{
		ExtractionResult: result,
		RunID:            result.RunID,
		Backend:          result.Backend,
		CursorAdvanced:   result.CursorAdvanced,
		DetailFailures:   result.DetailFailures,
		SkippedRows:      result.SkippedRows,
		PagesFetched:     result.PagesFetched,
		ExportFile:       result.ExportFile,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFull(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	afterID, ok := intQuery(w, r, "after_id")
	if !ok {
		return
	}

	result, err := s.extractor.ExtractFull(r.Context(), scraper.FullOptions{
		Limit:   limit,
		AfterID: afterID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(result))
}

func (s *Server) handleIncremental(w http.ResponseWriter, r *http.Request) {
	lastOrderID, ok := intQuery(w, r, "last_order_id")
	if !ok {
		return
	}

	result, err := s.extractor.ExtractIncremental(r.Context(), lastOrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(result))
}

func (s *Server) handleRawPage(w http.ResponseWriter, r *http.Request) {
	page, ok := intQuery(w, r, "page")
	if !ok {
		return
	}
	if page < 1 {
		page = 1
	}

	backend := r.URL.Query().Get("backend")
	switch backend {
	case "", config.BackendStatic, config.BackendBrowser:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown backend: "+backend))
		return
	}

	result, err := s.extractor.RawPage(r.Context(), page, backend)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intQuery parses an optional non-negative integer query parameter,
// answering 400 itself when the value is malformed.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name+": "+raw))
		return 0, false
	}
	return value, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var authErr *auth.AuthError
	var fetchErr *fetch.FetchError
	switch {
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(detail string) map[string]string {
	return map[string]string{"error": detail}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encode failed", slog.Any("error", err))
	}
}

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(ww, r)

		slog.Info("http request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)))
	})
}
