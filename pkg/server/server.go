// Package server exposes the analysis engine over HTTP. Nothing received is
// persisted; each request is analyzed and answered in isolation.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/analysis/paths"
	"github.com/dubhe-dev/dubhe/pkg/config"
	"github.com/dubhe-dev/dubhe/pkg/diagram"
	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/output"
	"github.com/dubhe-dev/dubhe/pkg/version"
)

// Analyzer is the part of the engine the server needs.
type Analyzer interface {
	AnalyzeReader(ctx context.Context, r io.Reader, format diagram.Format) (*models.Report, error)
}

// Server is the HTTP shell around an Analyzer.
type Server struct {
	analyzer Analyzer
	logger   *zap.Logger
	config   config.ServerConfig
	started  time.Time
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a server.
func New(analyzer Analyzer, logger *zap.Logger, cfg config.ServerConfig) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{analyzer: analyzer, logger: logger, config: cfg, started: time.Now()}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/analyze", s.analyze)
	return s.cors(mux)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", s.config.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.config.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) cors(next http.Handler) http.Handler {
	if s.config.AllowedOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "dubhe",
		Version:   version.GetVersion(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Details: map[string]string{
			"go_version": runtime.Version(),
			"num_cpu":    fmt.Sprint(runtime.NumCPU()),
		},
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format, err := output.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body := r.Body
	if s.config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	defer body.Close()

	report, err := s.analyzer.AnalyzeReader(r.Context(), body, diagram.FormatFromContentType(r.Header.Get("Content-Type")))
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("Analysis request failed", zap.Int("status", status), zap.Error(err))
		s.writeError(w, status, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := output.Write(&buf, report, format); err != nil {
		s.logger.Error("Failed to encode report", zap.String("run_id", report.RunInfo.RunID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to encode report")
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("Failed to send report", zap.String("run_id", report.RunInfo.RunID), zap.Error(err))
	}
}

// statusFor maps analysis errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, diagram.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, paths.ErrCycleDetected), errors.Is(err, paths.ErrPathLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func contentType(f output.Format) string {
	switch f {
	case output.FormatYAML:
		return "application/yaml"
	case output.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
