// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeContextExceeded
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning      = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound   = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrContextExceeded = &ClientError{Type: ErrTypeContextExceeded, Message: "context window exceeded"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is where a stock Ollama install listens.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemma2"

	// DefaultProbeTimeout bounds reachability checks.
	DefaultProbeTimeout = 2 * time.Second

	// maxResponseSize caps how much of a response body is read (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// ClientConfig holds configuration options for the Ollama client.
//
// ClientConfig is a value type. Probe returns an updated copy instead of
// modifying the one it was given; callers pass the returned value on.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434)
	BaseURL string

	// Model is the model name sent with every generate request (default: gemma2)
	Model string

	// Timeout bounds a single generate request. Zero means no limit;
	// large chunks on slow hardware can take minutes.
	Timeout time.Duration

	// ProbeTimeout bounds reachability checks (default: 2s)
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// withDefaults fills zero values and normalizes the base URL.
func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return cfg
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use, but the redaction pipeline only
// ever keeps one generate request in flight.
//
// Example:
//
//	client := ollama.NewClient(ollama.DefaultConfig())
//	cfg, err := client.Probe(ctx)
//	if err != nil {
//	    return err
//	}
//	client = client.WithConfig(cfg)
//	resp, err := client.Generate(ctx, req)
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Ollama client. Zero fields of cfg take defaults.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// WithConfig returns a client for cfg that shares the underlying HTTP
// transport with c.
func (c *Client) WithConfig(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Transport: c.httpClient.Transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// Config returns a copy of the client configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Model returns the model name used for generate requests.
func (c *Client) Model() string {
	return c.config.Model
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama answers on /api/tags at the configured
// URL within the probe timeout.
func (c *Client) CheckRunning(ctx context.Context) error {
	return c.ping(ctx, c.config.BaseURL)
}

// Probe checks reachability of the configured URL and, when that fails,
// of its loopback alias (localhost <-> 127.0.0.1). It returns the
// configuration that worked, which differs from the client's own only in
// BaseURL. The client itself is never modified.
func (c *Client) Probe(ctx context.Context) (ClientConfig, error) {
	cfg := c.config
	err := c.ping(ctx, cfg.BaseURL)
	if err == nil {
		return cfg, nil
	}

	if alt, ok := loopbackAlias(cfg.BaseURL); ok {
		if altErr := c.ping(ctx, alt); altErr == nil {
			cfg.BaseURL = alt
			return cfg, nil
		}
	}
	return cfg, err
}

// ping performs GET {base}/api/tags bounded by the probe timeout.
func (c *Client) ping(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// loopbackAlias swaps localhost and 127.0.0.1 in a base URL.
func loopbackAlias(base string) (string, bool) {
	switch {
	case strings.Contains(base, "localhost"):
		return strings.Replace(base, "localhost", "127.0.0.1", 1), true
	case strings.Contains(base, "127.0.0.1"):
		return strings.Replace(base, "127.0.0.1", "localhost", 1), true
	default:
		return "", false
	}
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all available models from Ollama.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var result ListModelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return result.Models, nil
}

// HasModel reports whether the configured model is installed. Tags like
// "gemma2" match "gemma2:latest".
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := c.config.Model
	for _, m := range models {
		if m.Name == want || strings.TrimSuffix(m.Name, ":latest") == want {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate sends a non-streaming request to /api/generate. An empty model
// in req is filled from the client configuration.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.config.Model
	}
	r.Stream = false

	body, err := json.Marshal(r)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, classifyTransportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + r.Model}
	}

	if resp.StatusCode != http.StatusOK {
		// Try to read error message
		var ollamaErr OllamaError
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&ollamaErr); err == nil && ollamaErr.Error != "" {
			return nil, &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: "generate request failed (" + resp.Status + "): " + ollamaErr.Error,
			}
		}
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "generate request failed: " + resp.Status,
		}
	}

	var result GenerateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return &result, nil
}

// GenerateJSON runs prompt in JSON mode and returns the raw response text.
// The text is usually, but not always, a bare JSON object.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, opts *Options) (string, error) {
	resp, err := c.Generate(ctx, &GenerateRequest{
		Prompt:  prompt,
		Format:  FormatJSON,
		Options: opts,
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// classifyTransportError maps an http.Client error to a ClientError.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return hasType(err, ErrTypeModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama is not reachable.
func IsNotRunning(err error) bool {
	return hasType(err, ErrTypeNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsUnreachable reports whether err means the backend could not be
// contacted at all, as opposed to answering badly.
func IsUnreachable(err error) bool {
	return IsNotRunning(err) || IsTimeout(err) || hasType(err, ErrTypeConnection)
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxResponseSize))
	r.Close()
}
