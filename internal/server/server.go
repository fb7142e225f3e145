// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/document"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/offline"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/sanitize"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/workflow"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8000"

	// multipartOverhead is allowed on top of the upload limit for form
	// boundaries and the other fields.
	multipartOverhead = 64 * 1024

	// multipartMemory is kept in memory before parts spill to temp files.
	multipartMemory = 1 << 20

	// maxKeyBytes bounds an uploaded redaction key.
	maxKeyBytes = 1 << 20

	// healthTimeout bounds the backend check in /health and /connection.
	healthTimeout = 3 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr           string
	Version        string
	MaxUploadBytes int64

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int

	Sanitize            sanitize.Options
	DefaultJurisdiction string

	// CORS defaults to DefaultCORSConfig when nil.
	CORS *CORSConfig
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the redaction pipeline over HTTP.
//
// Local model calls are serialized through a single slot: the backend
// processes one generation at a time, and a second document would only
// queue behind the first while holding its upload in memory.
type Server struct {
	cfg    Config
	logger logging.Logger

	ollama  *ollama.Client
	connect workflow.Connector
	remote  workflow.Remote

	slot    *semaphore.Weighted
	mux     *http.ServeMux
	server  *http.Server
	started time.Time
}

// New creates a Server that reaches the local model through client.
func New(cfg Config, client *ollama.Client, logger logging.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = document.MaxSize
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.CORS == nil {
		cfg.CORS = DefaultCORSConfig()
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		ollama:  client,
		slot:    semaphore.NewWeighted(1),
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	if client != nil {
		s.connect = workflow.OllamaConnector(client)
	}
	s.setupRoutes()
	return s
}

// WithRemote sets the remote summary backend. Without one,
// /download/report answers 503.
func (s *Server) WithRemote(r workflow.Remote) *Server {
	s.remote = r
	return s
}

// WithConnector replaces how the local model is reached.
func (s *Server) WithConnector(c workflow.Connector) *Server {
	s.connect = c
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /connection", s.handleConnection)
	s.mux.HandleFunc("GET /jurisdictions", s.handleJurisdictions)

	s.mux.HandleFunc("POST /upload/pdf", s.handleUploadPDF)
	s.mux.HandleFunc("POST /screen", s.handleScreen)
	s.mux.HandleFunc("POST /sanitize", s.handleSanitize)
	s.mux.HandleFunc("POST /risk", s.handleRisk)
	s.mux.HandleFunc("POST /restore", s.handleRestore)
	s.mux.HandleFunc("POST /download/report", s.handleReport)
	s.mux.HandleFunc("POST /download/risk-report", s.handleRiskReport)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var limiter *RateLimiter
	if s.cfg.RateLimit > 0 {
		limiter = NewRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	}
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(s.cfg.CORS),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(limiter, s.logger),
	)(s.mux)
}

// ============================================================================
// STATUS HANDLERS
// ============================================================================

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Redactor API is running",
		"version": s.cfg.Version,
	})
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	OllamaStatus string `json:"ollama_status"`
	RemoteStatus string `json:"remote_status"`
	LocalOnly    bool   `json:"local_only"`
	Warning      string `json:"warning,omitempty"`
	UptimeSecs   int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:     "ok",
		Version:    s.cfg.Version,
		LocalOnly:  offline.IsLocalOnly(),
		UptimeSecs: int64(time.Since(s.started).Seconds()),
	}

	switch {
	case s.connect == nil:
		health.OllamaStatus = "not_configured"
		health.Status = "degraded"
	default:
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if _, err := s.connect(ctx); err != nil {
			health.OllamaStatus = "unavailable"
			health.Status = "degraded"
		} else {
			health.OllamaStatus = "ok"
		}
	}
	if s.ollama != nil {
		health.Warning = offline.BackendWarning(s.ollama.Config().BaseURL)
	}

	switch {
	case health.LocalOnly:
		health.RemoteStatus = "disabled"
	case s.remote != nil:
		health.RemoteStatus = "configured"
	default:
		health.RemoteStatus = "not_configured"
	}

	writeJSON(w, http.StatusOK, health)
}

// ConnectionResponse is returned by GET /connection.
type ConnectionResponse struct {
	Connected      bool   `json:"connected"`
	URL            string `json:"url,omitempty"`
	Model          string `json:"model,omitempty"`
	ModelAvailable bool   `json:"model_available"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if s.ollama == nil {
		writeJSON(w, http.StatusOK, ConnectionResponse{Error: "local model backend not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := ConnectionResponse{Model: s.ollama.Model(), URL: s.ollama.Config().BaseURL}
	cfg, err := s.ollama.Probe(ctx)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Connected = true
	resp.URL = cfg.BaseURL

	has, err := s.ollama.WithConfig(cfg).HasModel(ctx)
	if err != nil {
		resp.Error = err.Error()
	}
	resp.ModelAvailable = has
	if err == nil && !has {
		resp.Error = fmt.Sprintf("model %q is not installed; run: ollama pull %s", resp.Model, resp.Model)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJurisdictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default":       jurisdiction.Resolve(s.cfg.DefaultJurisdiction).ID,
		"jurisdictions": jurisdiction.All(),
		"contexts":      jurisdiction.Presets(),
	})
}

// ============================================================================
// DOCUMENT HANDLERS
// ============================================================================

// DataResponse carries one text result, as {"data": ...}.
type DataResponse struct {
	Data     string `json:"data"`
	FileName string `json:"file_name,omitempty"`
	Pages    int    `json:"pages,omitempty"`
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return
	}
	if doc.Kind != document.KindPDF {
		writeError(w, http.StatusBadRequest, "File must be a PDF")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: doc.Text, FileName: doc.Name, Pages: doc.Pages})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return
	}
	gen, release, ok := s.acquireBackend(w, r)
	if !ok {
		return
	}
	defer release()

	res, err := screening.New(gen, s.logger).Screen(r.Context(), doc.Text)
	if err != nil {
		if errors.Is(err, screening.ErrBackendUnreachable) {
			s.backendUnavailable(w, err)
			return
		}
		s.logger.Warn("screening failed", "error", err)
		writeError(w, http.StatusBadGateway, "The local model returned an unusable screening result. Try again or choose the context manually.")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SanitizeResponse is returned by POST /sanitize.
type SanitizeResponse struct {
	Data         string     `json:"data"`
	Map          redact.Map `json:"map"`
	Jurisdiction string     `json:"jurisdiction"`
	Chunks       int        `json:"chunks"`
	FailedChunks []int      `json:"failed_chunks,omitempty"`
	PIICount     int        `json:"pii_count"`
	Warning      string     `json:"warning,omitempty"`
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return
	}
	j := s.jurisdictionParam(r)
	req := sanitize.Request{
		Text:         doc.Text,
		Context:      jurisdiction.ResolveContext(r.FormValue("context")),
		Jurisdiction: j,
	}

	gen, release, ok := s.acquireBackend(w, r)
	if !ok {
		return
	}
	defer release()

	res, err := sanitize.New(gen, s.cfg.Sanitize, s.logger).Sanitize(r.Context(), req, nil)
	if err != nil {
		// only a canceled request context gets here
		s.logger.Info("sanitize aborted", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Request canceled")
		return
	}

	resp := SanitizeResponse{
		Data:         res.Text,
		Map:          res.Map,
		Jurisdiction: j.ID,
		Chunks:       res.Chunks,
		FailedChunks: res.FailedChunks(),
		PIICount:     redact.Count(res.Text),
	}
	if resp.Map == nil {
		resp.Map = redact.Map{}
	}
	if res.Degraded() {
		resp.Warning = fmt.Sprintf("Privacy degraded: %d of %d chunks could not be redacted and contain original text.",
			len(res.Failures), res.Chunks)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	risk, ok := s.assessRisk(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, risk)
}

func (s *Server) handleRiskReport(w http.ResponseWriter, r *http.Request) {
	risk, ok := s.assessRisk(w, r)
	if !ok {
		return
	}
	pdf, err := export.RenderPDF(export.RiskText(risk.Risk))
	if err != nil {
		s.logger.Error("risk report rendering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not render the risk report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ReportFileName(risk.base, ".pdf")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

type riskResult struct {
	screening.Risk
	base string
}

func (s *Server) assessRisk(w http.ResponseWriter, r *http.Request) (riskResult, bool) {
	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return riskResult{}, false
	}
	j := s.jurisdictionParam(r)

	gen, release, ok := s.acquireBackend(w, r)
	if !ok {
		return riskResult{}, false
	}
	defer release()

	risk := screening.New(gen, s.logger).AssessRisk(r.Context(), doc.Text, j)
	return riskResult{Risk: risk, base: doc.Base()}, true
}

// RestoreResponse is returned by POST /restore.
type RestoreResponse struct {
	Data      string   `json:"data"`
	Applied   int      `json:"applied"`
	Remaining int      `json:"remaining_tags"`
	Unknown   []string `json:"unknown_tags,omitempty"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return
	}

	keyFile, _, err := r.FormFile("key")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing redaction key upload (form field \"key\")")
		return
	}
	defer keyFile.Close()

	data, err := io.ReadAll(io.LimitReader(keyFile, maxKeyBytes+1))
	if err != nil || len(data) > maxKeyBytes {
		writeError(w, http.StatusBadRequest, "Could not read the redaction key")
		return
	}
	m, err := redact.ImportKey(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid redaction key: expected a JSON object of tag to original value")
		return
	}

	restored, applied := redact.Restore(doc.Text, m)
	writeJSON(w, http.StatusOK, RestoreResponse{
		Data:      restored,
		Applied:   applied,
		Remaining: redact.Count(restored),
		Unknown:   redact.Missing(restored, m),
	})
}

// handleReport sends already-sanitized text for a remote summary. The
// caller uploads the output of /sanitize; nothing here redacts it.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if err := offline.CheckRemoteAllowed(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Remote analysis is disabled in local-only mode")
		return
	}
	if s.remote == nil {
		writeError(w, http.StatusServiceUnavailable, "Remote analysis is not configured; set REDACTOR_REMOTE_API_KEY")
		return
	}

	doc, ok := s.readDocument(w, r, "file")
	if !ok {
		return
	}

	summary, err := s.remote.Summarize(r.Context(), doc.Text)
	if err != nil {
		s.logger.Warn("remote summary failed", "error", err)
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, cloud.ErrRateLimited):
			status = http.StatusTooManyRequests
		case errors.Is(err, cloud.ErrNotConfigured), errors.Is(err, cloud.ErrOfflineMode):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "Remote summary failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: summary, FileName: doc.Name})
}

// ============================================================================
// REQUEST HELPERS
// ============================================================================

// readDocument decodes the multipart file in field. On failure it writes
// the error response and returns false.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request, field string) (*document.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead+maxKeyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds the %d byte limit", s.cfg.MaxUploadBytes))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart/form-data upload")
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing file upload (form field %q)", field))
		return nil, false
	}
	defer file.Close()

	doc, err := document.Load(header.Filename, file, s.cfg.MaxUploadBytes)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, document.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, document.ErrUnsupportedType):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, document.ErrPDFExtraction):
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return doc, true
}

func (s *Server) jurisdictionParam(r *http.Request) jurisdiction.Jurisdiction {
	if id := strings.TrimSpace(r.FormValue("jurisdiction")); id != "" {
		return jurisdiction.Resolve(id)
	}
	return jurisdiction.Resolve(s.cfg.DefaultJurisdiction)
}

// acquireBackend waits for the backend slot and connects. The returned
// release must be called when the model work is done.
func (s *Server) acquireBackend(w http.ResponseWriter, r *http.Request) (workflow.Generator, func(), bool) {
	if s.connect == nil {
		writeError(w, http.StatusServiceUnavailable, "Local model backend is not configured")
		return nil, nil, false
	}
	if err := s.slot.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Request canceled while waiting for the local model")
		return nil, nil, false
	}
	release := func() { s.slot.Release(1) }

	gen, err := s.connect(r.Context())
	if err != nil {
		release()
		s.backendUnavailable(w, err)
		return nil, nil, false
	}
	return gen, release, true
}

func (s *Server) backendUnavailable(w http.ResponseWriter, err error) {
	s.logger.Warn("local model unreachable", "error", err)
	msg := "Cannot reach the local model. Start Ollama (ollama serve) and try again."
	if ollama.IsModelNotFound(err) {
		msg = "The configured local model is not installed. Pull it with: ollama pull <model>"
	}
	writeError(w, http.StatusServiceUnavailable, msg)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Serve listens on the configured address until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// chunked redaction of a 5 MiB document takes a long time
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.cfg.Addr, "version", s.cfg.Version, "local_only", offline.IsLocalOnly())
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": {"message", "type", "code"}}.
func writeError(w http.ResponseWriter, status int, message string) {
	kind := "invalid_request_error"
	switch {
	case status == http.StatusServiceUnavailable:
		kind = "backend_unavailable"
	case status == http.StatusTooManyRequests:
		kind = "rate_limit_error"
	case status >= 500:
		kind = "server_error"
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    kind,
			"code":    status,
		},
	})
}
