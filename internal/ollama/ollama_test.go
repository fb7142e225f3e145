// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestServer returns a fake Ollama server and a client pointed at it.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(ClientConfig{BaseURL: srv.URL})
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{})
	cfg := c.Config()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", cfg.ProbeTimeout, DefaultProbeTimeout)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want unbounded", cfg.Timeout)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://localhost:11434/"})
	if got := c.Config().BaseURL; got != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, want trailing slash removed", got)
	}
}

func TestLoopbackAlias(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"http://localhost:11434", "http://127.0.0.1:11434", true},
		{"http://127.0.0.1:11434", "http://localhost:11434", true},
		{"http://gpu-box:11434", "", false},
	}

	for _, tt := range tests {
		got, ok := loopbackAlias(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("loopbackAlias(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func TestGenerate_SendsJSONModeRequest(t *testing.T) {
	var got GenerateRequest
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(GenerateResponse{Model: got.Model, Response: `{"ok":true}`, Done: true})
	})

	raw, err := client.GenerateJSON(context.Background(), "sanitize this", &Options{Temperature: 0.1, NumCtx: 32768})
	if err != nil {
		t.Fatalf("GenerateJSON error: %v", err)
	}
	if raw != `{"ok":true}` {
		t.Errorf("response = %q", raw)
	}
	if got.Model != DefaultModel {
		t.Errorf("model = %q, want %q", got.Model, DefaultModel)
	}
	if got.Stream {
		t.Error("stream = true, want false")
	}
	if got.Format != "json" {
		t.Errorf("format = %q, want json", got.Format)
	}
	if got.Options == nil || got.Options.Temperature != 0.1 || got.Options.NumCtx != 32768 {
		t.Errorf("options = %+v", got.Options)
	}
}

func TestGenerate_DoesNotMutateRequest(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerateResponse{Response: "{}"})
	})

	req := &GenerateRequest{Prompt: "x", Stream: true}
	if _, err := client.Generate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Model != "" || !req.Stream {
		t.Errorf("request was modified: %+v", req)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"out of memory"}`))
	})

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error = %v, want server message", err)
	}
	if IsUnreachable(err) {
		t.Error("a 500 answer is not an unreachable backend")
	}
}

func TestGenerate_ModelNotFound(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	if !IsModelNotFound(err) {
		t.Errorf("error = %v, want model not found", err)
	}
}

func TestGenerate_InvalidBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Errorf("error = %v, want invalid response", err)
	}
}

func TestGenerate_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: url})
	_, err := client.GenerateJSON(context.Background(), "p", nil)
	if !IsNotRunning(err) {
		t.Errorf("error = %v, want not running", err)
	}
	if !IsUnreachable(err) {
		t.Error("IsUnreachable = false for closed server")
	}
}

func TestGenerate_Canceled(t *testing.T) {
	release := make(chan struct{})
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.GenerateJSON(ctx, "p", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// PROBE TESTS
// =============================================================================

func TestProbe_Reachable(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("probe path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	})

	cfg, err := client.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if cfg.BaseURL != srv.URL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, srv.URL)
	}
}

func TestProbe_FallsBackToLoopbackAlias(t *testing.T) {
	// Reject requests addressed to "localhost" so only the alias works.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Host, "localhost") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	localURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)
	client := NewClient(ClientConfig{BaseURL: localURL})

	cfg, err := client.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if cfg.BaseURL != srv.URL {
		t.Errorf("BaseURL = %q, want fallback %q", cfg.BaseURL, srv.URL)
	}
	if client.Config().BaseURL != localURL {
		t.Error("Probe modified the client configuration")
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: url})
	cfg, err := client.Probe(context.Background())
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if cfg.BaseURL != url {
		t.Errorf("BaseURL = %q, want unchanged %q", cfg.BaseURL, url)
	}
}

func TestProbe_UsesShortTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(ClientConfig{BaseURL: srv.URL, ProbeTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Probe(context.Background())
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, want it bounded by the probe timeout", elapsed)
	}
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestHasModel(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{{Name: "gemma2:latest"}, {Name: "llama3:8b"}}})
	})

	ok, err := client.HasModel(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("HasModel = false, want gemma2:latest to match gemma2")
	}

	ok, _ = client.WithConfig(ClientConfig{BaseURL: client.Config().BaseURL, Model: "mistral"}).HasModel(context.Background())
	if ok {
		t.Error("HasModel = true for missing model")
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{5798205850, "5.4 GB"},
	}

	for _, tt := range tests {
		m := ModelInfo{Size: tt.size}
		if got := m.FormatSize(); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
