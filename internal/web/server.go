// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docredact/internal/ai"
	"docredact/internal/config"
	"docredact/internal/core"
	"docredact/internal/exporters"
	"docredact/internal/ingest"
	"docredact/internal/observability"
	"docredact/internal/storage"
	"docredact/internal/version"
)

// Dependencies are the collaborators the API handlers delegate to
type Dependencies struct {
	Runtime      *config.Runtime
	Blobs        storage.BlobStore
	Table        storage.TabularStore
	Ingest       *ingest.Pipeline
	Orchestrator *core.Orchestrator
	Exporter     *core.Exporter
	Formats      []FormatInfo
	Completion   ai.Completion
	Observer     *observability.StandardObserver

	// RequestTimeout bounds each API request. Zero disables it.
	RequestTimeout time.Duration
	// MaxUploadBytes caps the body of an upload request
	MaxUploadBytes int64
	// AIProbeTimeout bounds the test-ai round trip
	AIProbeTimeout time.Duration
}

// FormatInfo describes one redaction format for the formats endpoint
type FormatInfo struct {
	Format     string   `json:"format"`
	Extensions []string `json:"extensions"`
}

// WebServer represents the web server instance
type WebServer struct {
	addr   string
	deps   Dependencies
	router chi.Router
	server *http.Server
	logger *slog.Logger
}

// APIResponse is the envelope every JSON endpoint answers with
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewWebServer creates a new web server instance
func NewWebServer(addr string, deps Dependencies) *WebServer {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 100 << 20
	}
	if deps.AIProbeTimeout <= 0 {
		deps.AIProbeTimeout = 30 * time.Second
	}
	if deps.Completion == nil {
		deps.Completion = ai.Unconfigured{}
	}
	ws := &WebServer{
		addr:   addr,
		deps:   deps,
		logger: deps.Observer.Logger(),
	}
	ws.setupRoutes()
	ws.server = ws.createSecureServer(addr)
	return ws
}

// Handler returns the routed HTTP handler
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Stop is called
func (ws *WebServer) Start() error {
	ws.logger.Info("docredact API listening", "addr", ws.addr)
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve on %s: %w\n"+
			"Troubleshooting: check that no other process is bound to the port and try --addr", ws.addr, err)
	}
	return nil
}

// Stop gracefully stops the web server
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP route handlers
func (ws *WebServer) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ws.requestLogger)

	r.Get("/health", ws.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if ws.deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(ws.deps.RequestTimeout))
		}

		r.Post("/upload", ws.handleUpload)
		r.Post("/write-to-table", ws.handleWriteToTable)
		r.Post("/query-table", ws.handleQueryTable)
		r.Post("/redact", ws.handleRedact)
		r.Post("/redact-pdf", ws.handleRedactPDF)
		r.Post("/export", ws.handleExport)
		r.Get("/download", ws.handleDownload)

		r.Get("/config", ws.handleGetConfig)
		r.Post("/config", ws.handleUpdateConfig)
		r.Post("/config/reset", ws.handleResetConfig)

		r.Get("/formats", ws.handleFormats)
		r.Post("/test-ai", ws.handleTestAI)
	})

	ws.router = r
}

// createSecureServer creates an HTTP server with security timeouts
func (ws *WebServer) createSecureServer(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: ws.router,
		// Timeout for reading request headers (prevents slow header attacks)
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads of large documents need a generous read window
		ReadTimeout: 5 * time.Minute,
		// Redaction batches wait on the model for every file
		WriteTimeout: 15 * time.Minute,
		// Timeout for idle connections
		IdleTimeout: 60 * time.Second,
	}
}

// requestLogger records one structured line per request
func (ws *WebServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		ws.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handleHealth provides a health check endpoint with version information
func (ws *WebServer) handleHealth(responseWriter http.ResponseWriter, _ *http.Request) {
	build := version.Current()
	ws.writeJSON(responseWriter, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "docredact",
		"version":    build.Version,
		"build_info": build,
	})
}

// writeJSON encodes payload with the given status
func (ws *WebServer) writeJSON(responseWriter http.ResponseWriter, statusCode int, payload interface{}) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
	if err := json.NewEncoder(responseWriter).Encode(payload); err != nil {
		ws.logger.Warn("failed to encode response", "error", err)
	}
}

// sendError sends a 400 error response
func (ws *WebServer) sendError(responseWriter http.ResponseWriter, message string) {
	ws.sendErrorWithStatus(responseWriter, message, http.StatusBadRequest)
}

// sendErrorWithStatus sends an error response with a specific HTTP status code
func (ws *WebServer) sendErrorWithStatus(responseWriter http.ResponseWriter, message string, statusCode int) {
	ws.writeJSON(responseWriter, statusCode, APIResponse{
		Success: false,
		Error:   ws.enhanceErrorMessage(message, statusCode),
	})
}

// sendFailure maps err onto a status code and sends it
func (ws *WebServer) sendFailure(responseWriter http.ResponseWriter, err error) {
	ws.sendErrorWithStatus(responseWriter, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, ingest.ErrNoFiles),
		errors.Is(err, exporters.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoContent), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// enhanceErrorMessage adds troubleshooting information to error messages
func (ws *WebServer) enhanceErrorMessage(message string, statusCode int) string {
	switch {
	case strings.Contains(message, "Failed to parse form data"):
		return message + "\nTroubleshooting: Ensure you're uploading files using multipart/form-data with 'files' field name"
	case strings.Contains(message, "No files uploaded"):
		return message + "\nTroubleshooting: Select one or more files before uploading"
	case strings.Contains(message, "configuration error"):
		return message + "\nTroubleshooting: Set the paths through POST /api/config"
	case statusCode == http.StatusInternalServerError:
		return message + "\nTroubleshooting: Check server logs for detailed error information"
	default:
		return message
	}
}

// sanitizeUserInput removes dangerous characters from user input for safe output
func sanitizeUserInput(input string, maxLength int) string {
	sanitized := strings.Map(func(r rune) rune {
		// Remove control characters (0-31, 127)
		if r < 32 || r == 127 {
			return -1
		}
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, input)

	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength] + "..."
	}
	return sanitized
}
