// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the remote analysis stage: a summary of the
// sanitized text and a leak audit comparing original and sanitized
// samples. Requests go to an OpenAI-compatible endpoint (OpenRouter by
// default).
package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sethvargo/go-retry"

	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/offline"
)

// Configuration constants for the remote endpoint.
const (
	// DefaultBaseURL is the OpenRouter API base URL.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultSummaryModel is used for the summary when none is configured.
	DefaultSummaryModel = "google/gemini-flash-1.5"

	// DefaultAuditModel is used for the leak audit when none is configured.
	DefaultAuditModel = "google/gemini-pro-1.5"

	// DefaultSummaryTemperature is the sampling temperature for summaries.
	DefaultSummaryTemperature = 0.3

	// DefaultTimeout bounds one remote call including retries.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of retries for transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps a single backoff step.
	retryMaxDelay = 10 * time.Second
)

// Error variables for remote failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("remote API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("remote model returned no content")

	// ErrOfflineMode is returned for every call made in local-only mode.
	ErrOfflineMode = offline.ErrRemoteBlocked
)

// APIError is a non-2xx answer from the remote endpoint.
type APIError struct {
	Status  int
	Message string
	Kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote error (HTTP %d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Kind }

// =============================================================================
// CLIENT
// =============================================================================

// Config holds remote endpoint settings.
type Config struct {
	BaseURL            string
	APIKey             string
	SummaryModel       string
	AuditModel         string
	SummaryTemperature float64
	MaxRetries         int
	Timeout            time.Duration

	// RetryBase overrides the first backoff step; zero uses the default.
	RetryBase time.Duration

	SiteURL  string
	SiteName string

	HTTPClient *http.Client
}

// DefaultConfig returns the OpenRouter defaults without an API key.
func DefaultConfig() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		SummaryModel:       DefaultSummaryModel,
		AuditModel:         DefaultAuditModel,
		SummaryTemperature: DefaultSummaryTemperature,
		MaxRetries:         DefaultMaxRetries,
		Timeout:            DefaultTimeout,
		SiteName:           "redactor",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SummaryModel == "" {
		c.SummaryModel = d.SummaryModel
	}
	if c.AuditModel == "" {
		c.AuditModel = d.AuditModel
	}
	if c.SummaryTemperature <= 0 {
		c.SummaryTemperature = d.SummaryTemperature
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RetryBase <= 0 {
		c.RetryBase = retryBaseDelay
	}
	return c
}

// Client talks to the remote endpoint. It is safe for concurrent use.
type Client struct {
	api    openai.Client
	cfg    Config
	logger logging.Logger
}

// NewClient creates a remote client. A missing API key is not an error
// here; calls fail with ErrNotConfigured instead.
func NewClient(cfg Config, logger logging.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL + "/"),
		// Retries are driven by go-retry below.
		option.WithMaxRetries(0),
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:    openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// APIKeyMasked returns a display form of the API key that never shows
// key characters.
func (c *Client) APIKeyMasked() string {
	if c.cfg.APIKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.cfg.APIKey), c.KeyFingerprint())
}

// KeyFingerprint returns the first 8 hex chars of the key's SHA-256.
func (c *Client) KeyFingerprint() string {
	if c.cfg.APIKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.cfg.APIKey))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// complete runs one chat completion with retry on transient failures and
// returns the first choice's content.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	if err := offline.CheckRemoteAllowed(); err != nil {
		return "", err
	}
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	backoff := retry.NewExponential(c.cfg.RetryBase)
	backoff = retry.WithCappedDuration(retryMaxDelay, backoff)
	if jitter := c.cfg.RetryBase / 10; jitter > 0 {
		backoff = retry.WithJitter(jitter, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(c.cfg.MaxRetries), backoff)

	var content string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		start := time.Now()
		completion, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			classified := classifyError(err)
			c.logger.Debug("remote call failed",
				"model", params.Model, "attempt", attempt, "duration", time.Since(start), "error", classified)
			if isTransient(classified) {
				return retry.RetryableError(classified)
			}
			return classified
		}
		c.logger.Debug("remote call complete",
			"model", params.Model, "attempt", attempt, "duration", time.Since(start),
			"tokens", completion.Usage.TotalTokens)

		if len(completion.Choices) == 0 {
			return ErrEmptyResponse
		}
		content = completion.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// classifyError maps SDK and transport errors onto the package sentinels.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		out := &APIError{Status: apiErr.StatusCode, Message: msg}
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			out.Kind = ErrAuthFailed
		case http.StatusPaymentRequired:
			out.Kind = ErrInsufficientCredits
		case http.StatusNotFound:
			out.Kind = ErrModelNotFound
		case http.StatusTooManyRequests:
			out.Kind = ErrRateLimited
		}
		return out
	}
	return fmt.Errorf("remote request failed: %w", err)
}

// isTransient reports whether a classified error is worth retrying.
// Rate limits, server errors and transport failures are; other HTTP
// statuses and cancellation are not.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// chatParams builds the common request shape.
func chatParams(model, system, content string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(content),
		},
	}
}
