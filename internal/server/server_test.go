// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/offline"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/workflow"
)

// =============================================================================
// FAKES
// =============================================================================

const sampleText = "Dear Bob,\nplease email carol@example.org about the invoice.\n"

type fakeModel struct{}

func (fakeModel) GenerateJSON(ctx context.Context, prompt string, opts *ollama.Options) (string, error) {
	switch {
	case strings.Contains(prompt, "identify its context"):
		return `{"detectedContext":"Business letter","suggestedJurisdictionId":"uk","findings":["Email","Name"],"explanation":"A letter."}`, nil
	case strings.Contains(prompt, "Data Protection Officer"):
		return `{"riskLevel":"Medium","riskReason":"Names and an email.","regulatoryWarning":"UK GDPR Art. 5"}`, nil
	case strings.Contains(prompt, "data privacy engine"):
		text := prompt[strings.LastIndex(prompt, "Text to sanitize:\n")+len("Text to sanitize:\n"):]
		text = strings.ReplaceAll(text, "carol@example.org", "[REDACTED_EMAIL_1]")
		text = strings.ReplaceAll(text, "Bob", "[REDACTED_NAME_1]")
		out, _ := json.Marshal(map[string]any{
			"redactedText": text,
			"map": map[string]string{
				"[REDACTED_EMAIL_1]": "carol@example.org",
				"[REDACTED_NAME_1]":  "Bob",
			},
		})
		return string(out), nil
	}
	return "", errors.New("unexpected prompt")
}

func upConnector(ctx context.Context) (workflow.Generator, error) { return fakeModel{}, nil }

func downConnector(ctx context.Context) (workflow.Generator, error) {
	return nil, &ollama.ClientError{Type: ollama.ErrTypeNotRunning, Message: "connection refused"}
}

type fakeRemote struct {
	mu    sync.Mutex
	input string
	err   error
}

func (r *fakeRemote) Summarize(ctx context.Context, sanitized string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = sanitized
	if r.err != nil {
		return "", r.err
	}
	return "An invoice enquiry.", nil
}

func (r *fakeRemote) Audit(ctx context.Context, original, sanitized string) (*cloud.AuditResult, error) {
	return nil, errors.New("not used")
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.DefaultJurisdiction == "" {
		cfg.DefaultJurisdiction = "global"
	}
	cfg.Version = "test"
	return New(cfg, nil, logging.Discard()).WithConnector(upConnector)
}

type upload struct {
	name    string
	content string
}

// multipartRequest builds a POST with the given files and fields.
func multipartRequest(t *testing.T, path string, files map[string]upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// =============================================================================
// STATUS ENDPOINTS
// =============================================================================

func TestRoot(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "Redactor API is running", body["message"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.OllamaStatus)
	assert.Equal(t, "not_configured", health.RemoteStatus)

	s.WithConnector(downConnector).WithRemote(&fakeRemote{})
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	health = decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.OllamaStatus)
	assert.Equal(t, "configured", health.RemoteStatus)
}

func TestConnection(t *testing.T) {
	ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"models":[{"name":"gemma2:latest"}]}`)
	}))
	defer ollamaSrv.Close()

	client := ollama.NewClient(ollama.ClientConfig{BaseURL: ollamaSrv.URL, Model: "gemma2"})
	s := New(Config{}, client, logging.Discard())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/connection", nil))
	conn := decode[ConnectionResponse](t, rec)
	assert.True(t, conn.Connected)
	assert.True(t, conn.ModelAvailable)
	assert.Equal(t, ollamaSrv.URL, conn.URL)
	assert.Empty(t, conn.Error)

	missing := New(Config{}, ollama.NewClient(ollama.ClientConfig{BaseURL: ollamaSrv.URL, Model: "llama3"}), logging.Discard())
	conn = decode[ConnectionResponse](t, serve(missing, httptest.NewRequest(http.MethodGet, "/connection", nil)))
	assert.True(t, conn.Connected)
	assert.False(t, conn.ModelAvailable)
	assert.Contains(t, conn.Error, "ollama pull llama3")
}

func TestJurisdictions(t *testing.T) {
	s := newTestServer(t, Config{DefaultJurisdiction: "EU"})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/jurisdictions", nil))

	var body struct {
		Default       string            `json:"default"`
		Jurisdictions []json.RawMessage `json:"jurisdictions"`
		Contexts      []json.RawMessage `json:"contexts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "eu", body.Default)
	assert.Len(t, body.Jurisdictions, 8)
	assert.Len(t, body.Contexts, 5)
}

// =============================================================================
// DOCUMENT ENDPOINTS
// =============================================================================

func TestSanitize(t *testing.T) {
	s := newTestServer(t, Config{})
	req := multipartRequest(t, "/sanitize",
		map[string]upload{"file": {"letter.txt", sampleText}},
		map[string]string{"context": "sales", "jurisdiction": "uk"})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SanitizeResponse](t, rec)
	assert.NotContains(t, resp.Data, "carol@example.org")
	assert.NotContains(t, resp.Data, "Bob")
	assert.Equal(t, "uk", resp.Jurisdiction)
	assert.Equal(t, 1, resp.Chunks)
	assert.Equal(t, 2, resp.PIICount)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, "Bob", resp.Map["[REDACTED_NAME_1]"])
}

func TestSanitize_UploadErrors(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadBytes: 100})

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{
			name:   "missing file",
			req:    multipartRequest(t, "/sanitize", nil, map[string]string{"context": "tech"}),
			status: http.StatusBadRequest,
		},
		{
			name:   "unsupported extension",
			req:    multipartRequest(t, "/sanitize", map[string]upload{"file": {"tool.exe", "MZ binary"}}, nil),
			status: http.StatusUnsupportedMediaType,
		},
		{
			name:   "empty document",
			req:    multipartRequest(t, "/sanitize", map[string]upload{"file": {"blank.txt", "  \n\n"}}, nil),
			status: http.StatusBadRequest,
		},
		{
			name:   "too large",
			req:    multipartRequest(t, "/sanitize", map[string]upload{"file": {"big.txt", strings.Repeat("a", 200)}}, nil),
			status: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "not multipart",
			req:    httptest.NewRequest(http.MethodPost, "/sanitize", strings.NewReader(sampleText)),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.status, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestSanitize_BackendDown(t *testing.T) {
	s := newTestServer(t, Config{}).WithConnector(downConnector)
	rec := serve(s, multipartRequest(t, "/sanitize", map[string]upload{"file": {"letter.txt", sampleText}}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "backend_unavailable", body.Error.Type)
	assert.Contains(t, body.Error.Message, "ollama serve")
}

func TestScreen(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, multipartRequest(t, "/screen", map[string]upload{"file": {"letter.md", sampleText}}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Business letter", body["detectedContext"])
	assert.Equal(t, "uk", body["suggestedJurisdictionId"])
}

func TestRisk(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, multipartRequest(t, "/risk",
		map[string]upload{"file": {"letter.txt", sampleText}},
		map[string]string{"jurisdiction": "uk"}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Medium", body["riskLevel"])
	assert.Equal(t, "UK GDPR Art. 5", body["regulatoryWarning"])
	assert.NotContains(t, body, "base")
}

func TestRiskReport(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, multipartRequest(t, "/download/risk-report", map[string]upload{"file": {"letter.txt", sampleText}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "analysis_letter.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestUploadPDF_RejectsText(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, multipartRequest(t, "/upload/pdf", map[string]upload{"file": {"letter.txt", sampleText}}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error.Message, "PDF")
}

func TestRestore(t *testing.T) {
	s := newTestServer(t, Config{})
	key, err := redact.ExportKey(redact.Map{"[REDACTED_EMAIL_1]": "carol@example.org"})
	require.NoError(t, err)

	sanitized := "Write to [REDACTED_EMAIL_1] about [REDACTED_NAME_1].\n"
	rec := serve(s, multipartRequest(t, "/restore", map[string]upload{
		"file": {"sanitized_letter.txt", sanitized},
		"key":  {"redaction_key_letter.json", string(key)},
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[RestoreResponse](t, rec)
	assert.Equal(t, "Write to carol@example.org about [REDACTED_NAME_1].\n", resp.Data)
	assert.Equal(t, 1, resp.Applied)
	assert.Equal(t, 1, resp.Remaining)
	assert.Equal(t, []string{"[REDACTED_NAME_1]"}, resp.Unknown)
}

func TestRestore_InvalidKey(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, multipartRequest(t, "/restore", map[string]upload{
		"file": {"sanitized.txt", "[REDACTED_EMAIL_1]"},
		"key":  {"key.json", `["not", "an", "object"]`},
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error.Message, "Invalid redaction key")
}

func TestDownloadReport(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestServer(t, Config{}).WithRemote(remote)
	sanitized := "Dear [REDACTED_NAME_1], about the invoice.\n"

	rec := serve(s, multipartRequest(t, "/download/report", map[string]upload{"file": {"sanitized.txt", sanitized}}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "An invoice enquiry.", decode[DataResponse](t, rec).Data)
	assert.Equal(t, sanitized, remote.input)

	remote.err = cloud.ErrRateLimited
	rec = serve(s, multipartRequest(t, "/download/report", map[string]upload{"file": {"sanitized.txt", sanitized}}, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDownloadReport_Unavailable(t *testing.T) {
	s := newTestServer(t, Config{})
	req := func() *http.Request {
		return multipartRequest(t, "/download/report", map[string]upload{"file": {"sanitized.txt", "text"}}, nil)
	}

	rec := serve(s, req())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error.Message, "not configured")

	remote := &fakeRemote{}
	s.WithRemote(remote)
	offline.SetLocalOnly(true)
	defer offline.SetLocalOnly(false)

	rec = serve(s, req())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error.Message, "local-only")
	assert.Empty(t, remote.input, "nothing may reach the remote in local-only mode")
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})
	h := s.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:4242"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.8:4242"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/sanitize", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.5:1234", "", "203.0.113.5"},
		{"untrusted forwarded header ignored", "203.0.113.5:1234", "198.51.100.1", "203.0.113.5"},
		{"trusted proxy", "127.0.0.1:1234", "198.51.100.1, 10.0.0.1", "198.51.100.1"},
		{"trusted proxy with garbage", "10.1.2.3:1234", "not-an-ip", "10.1.2.3"},
		{"no port", "203.0.113.9", "", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
