// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/offline"
)

// =============================================================================
// TEST SERVER
// =============================================================================

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

// completionBody renders a minimal chat completion with content.
func completionBody(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":      "gen-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return string(data)
}

// recordingServer answers chat completions through handle and keeps every
// decoded request body.
type recordingServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
	hdrs   []http.Header
	calls  atomic.Int32
}

func newRecordingServer(t *testing.T, handle func(call int, w http.ResponseWriter)) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)

		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		rs.hdrs = append(rs.hdrs, r.Header.Clone())
		rs.mu.Unlock()

		call := int(rs.calls.Add(1)) - 1
		w.Header().Set("Content-Type", "application/json")
		handle(call, w)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) body(i int) map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bodies[i]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, msg, status)
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		APIKey:     testKey,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
		Timeout:    5 * time.Second,
	}, logging.Discard())
}

// =============================================================================
// CONFIGURATION TESTS
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "  key  "}, nil)
	cfg := c.Config()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultSummaryModel, cfg.SummaryModel)
	assert.Equal(t, DefaultAuditModel, cfg.AuditModel)
	assert.Equal(t, DefaultSummaryTemperature, cfg.SummaryTemperature)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "key", cfg.APIKey)
	assert.True(t, c.IsConfigured())
}

func TestAPIKeyMasked(t *testing.T) {
	c := NewClient(Config{APIKey: testKey}, logging.Discard())
	masked := c.APIKeyMasked()

	assert.NotContains(t, masked, "abcdef")
	assert.Contains(t, masked, fmt.Sprintf("length=%d", len(testKey)))
	assert.Len(t, c.KeyFingerprint(), 8)

	empty := NewClient(Config{}, logging.Discard())
	assert.Equal(t, "[not set]", empty.APIKeyMasked())
	assert.Equal(t, "none", empty.KeyFingerprint())
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Config{}, logging.Discard())

	_, err := c.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Audit(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLocalOnlyBlocksRemote(t *testing.T) {
	original := offline.IsLocalOnly()
	defer offline.SetLocalOnly(original)
	offline.SetLocalOnly(true)

	srv := newRecordingServer(t, func(int, http.ResponseWriter) {
		t.Error("remote endpoint must not be contacted in local-only mode")
	})

	_, err := newTestClient(srv.URL).Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrOfflineMode)
	assert.Zero(t, srv.calls.Load())
}

// =============================================================================
// SUMMARY TESTS
// =============================================================================

func TestSummarize(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("  A contract between [REDACTED_NAME_1] and a vendor.\n"))
	})

	got, err := newTestClient(srv.URL).Summarize(context.Background(), "Contract: [REDACTED_NAME_1] buys widgets.")
	require.NoError(t, err)
	assert.Equal(t, "A contract between [REDACTED_NAME_1] and a vendor.", got)

	body := srv.body(0)
	assert.Equal(t, DefaultSummaryModel, body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Contains(t, msgs[0].(map[string]any)["content"], "locally sanitized")
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "Contract: [REDACTED_NAME_1] buys widgets.", msgs[1].(map[string]any)["content"])

	srv.mu.Lock()
	assert.Equal(t, "Bearer "+testKey, srv.hdrs[0].Get("Authorization"))
	assert.Equal(t, "redactor", srv.hdrs[0].Get("X-Title"))
	srv.mu.Unlock()
}

func TestSummarize_EmptyContent(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("   "))
	})

	got, err := newTestClient(srv.URL).Summarize(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, NoSummary, got)
}

// =============================================================================
// RETRY AND ERROR TESTS
// =============================================================================

func TestRetryOnServerError(t *testing.T) {
	srv := newRecordingServer(t, func(call int, w http.ResponseWriter) {
		if call < 2 {
			writeError(w, http.StatusBadGateway, "upstream unavailable")
			return
		}
		io.WriteString(w, completionBody("ok"))
	})

	got, err := newTestClient(srv.URL).Summarize(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), srv.calls.Load())
}

func TestRetryExhaustedOnRateLimit(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		writeError(w, http.StatusTooManyRequests, "slow down")
	})

	_, err := newTestClient(srv.URL).Summarize(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), srv.calls.Load(), "one attempt plus two retries")
}

func TestNoRetryOnClientErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusPaymentRequired, ErrInsufficientCredits},
		{http.StatusNotFound, ErrModelNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
				writeError(w, tt.status, "nope")
			})

			_, err := newTestClient(srv.URL).Summarize(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, int32(1), srv.calls.Load())
		})
	}
}

func TestCanceledContext(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("late"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Summarize(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&APIError{Status: 500}))
	assert.True(t, isTransient(&APIError{Status: 429, Kind: ErrRateLimited}))
	assert.False(t, isTransient(&APIError{Status: 400}))
	assert.False(t, isTransient(&APIError{Status: 401, Kind: ErrAuthFailed}))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
}

// =============================================================================
// AUDIT TESTS
// =============================================================================

func TestAudit(t *testing.T) {
	verdict := `{"score":82,"leaks":[{"item":"Jane Roe","type":"Name","context":"Dear Jane Roe,","severity":"Critical"},` +
		`{"item":"Springfield","type":"City","context":"in Springfield","severity":"Warning"}],` +
		`"summary":"One direct identifier survived.","accuracyMetrics":{"precision":0.95,"recall":0.8}}`
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody(verdict))
	})

	res, err := newTestClient(srv.URL).Audit(context.Background(), "Dear Jane Roe, in Springfield", "Dear Jane Roe, in Springfield")
	require.NoError(t, err)

	assert.Equal(t, 82, res.Score)
	require.Len(t, res.Leaks, 2)
	assert.Equal(t, "Jane Roe", res.Leaks[0].Item)
	assert.Equal(t, 1, res.Critical())
	assert.Equal(t, "One direct identifier survived.", res.Summary)
	assert.InDelta(t, 0.95, res.AccuracyMetrics.Precision, 1e-9)
	assert.InDelta(t, 0.8, res.AccuracyMetrics.Recall, 1e-9)

	body := srv.body(0)
	assert.Equal(t, DefaultAuditModel, body["model"])
	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "leak_audit", schema["name"])
	assert.Equal(t, true, schema["strict"])

	user := body["messages"].([]any)[1].(map[string]any)["content"].(string)
	assert.True(t, strings.HasPrefix(user, "ORIGINAL:\n"))
	assert.Contains(t, user, "\n\nSANITIZED:\n")
}

func TestAudit_SamplesAndNormalizes(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("```json\n"+`{"score":140,"summary":"ok","accuracyMetrics":{"precision":1.5,"recall":-0.2}}`+"\n```"))
	})

	original := strings.Repeat("o", AuditSampleSize) + "ORIGINAL-TAIL"
	sanitized := strings.Repeat("s", AuditSampleSize) + "SANITIZED-TAIL"

	res, err := newTestClient(srv.URL).Audit(context.Background(), original, sanitized)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 1.0, res.AccuracyMetrics.Precision)
	assert.Equal(t, 0.0, res.AccuracyMetrics.Recall)
	assert.NotNil(t, res.Leaks)
	assert.Empty(t, res.Leaks)

	user := srv.body(0)["messages"].([]any)[1].(map[string]any)["content"].(string)
	assert.NotContains(t, user, "ORIGINAL-TAIL")
	assert.NotContains(t, user, "SANITIZED-TAIL")
}

func TestAudit_MalformedVerdict(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("I could not audit this."))
	})

	_, err := newTestClient(srv.URL).Audit(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit failed")
}

// =============================================================================
// CONCURRENT ACCESS TESTS
// =============================================================================

func TestSummarize_Concurrent(t *testing.T) {
	srv := newRecordingServer(t, func(_ int, w http.ResponseWriter) {
		io.WriteString(w, completionBody("summary"))
	})
	client := newTestClient(srv.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Summarize(context.Background(), "x"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Summarize error: %v", err)
	}
	assert.Equal(t, int32(20), srv.calls.Load())
}
