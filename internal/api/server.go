// Package api exposes the trajectory service over HTTP.
package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seaway-data/shiptrace/internal/config"
	"github.com/seaway-data/shiptrace/internal/export"
	"github.com/seaway-data/shiptrace/internal/httputil"
	"github.com/seaway-data/shiptrace/internal/ingest"
	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/pipeline"
	"github.com/seaway-data/shiptrace/internal/schema"
	"github.com/seaway-data/shiptrace/internal/version"
)

// ANSI escape codes for request log lines
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the trajectory payload and its diagnostic views.
type Server struct {
	pipeline *pipeline.Pipeline
	cfg      *config.Config
	started  time.Time
}

func NewServer(p *pipeline.Pipeline, cfg *config.Config) *Server {
	return &Server{
		pipeline: p,
		cfg:      cfg,
		started:  time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trajectory", s.showTrajectory)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/debug/charts/series", s.handleSeriesChart)
	mux.HandleFunc("/debug/charts/windfield", s.handleWindFieldPlot)
	return mux
}

// showTrajectory computes (or fetches from cache) the joined trajectory and
// returns the combined scene and chart payload.
func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	t, err := s.pipeline.Result(r.Context())
	if err != nil {
		s.writeTrajectoryError(w, err)
		return
	}

	payload, err := export.Build(t)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, payload)
}

// writeTrajectoryError maps pipeline failures to HTTP statuses. Bad input
// data is the client's problem (422), a missing source file is 404, and
// everything else is a server fault.
func (s *Server) writeTrajectoryError(w http.ResponseWriter, err error) {
	var schemaErr *schema.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		httputil.UnprocessableEntity(w, schemaErr.Error())
	case errors.Is(err, ingest.ErrEmptyTrajectory):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, os.ErrNotExist):
		httputil.NotFound(w, err.Error())
	default:
		monitoring.Logf("api: trajectory request failed: %v", err)
		httputil.InternalServerError(w, "failed to compute trajectory")
	}
}

// showConfig returns the effective configuration with credentials elided.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"listen": s.cfg.Listen,
		"trajectory": map[string]interface{}{
			"path":              s.cfg.Trajectory.Path,
			"encoding":          s.cfg.Trajectory.Encoding,
			"resample_interval": s.cfg.Trajectory.ResampleInterval,
			"row_limit":         s.cfg.Trajectory.RowLimit,
		},
		"grid": map[string]interface{}{
			"path":   s.cfg.Grid.Path,
			"levels": s.cfg.Grid.Levels,
			"loaded": s.pipeline.Grid() != nil,
		},
		"llm_enabled": s.cfg.LLMEnabled(),
	})
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"grid_loaded":    s.pipeline.Grid() != nil,
	})
}

// requestedFields parses the comma-separated fields query parameter.
func requestedFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
