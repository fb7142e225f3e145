// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the optional remote analysis stage.
//
// The remote endpoint is any OpenAI-compatible chat completions API;
// OpenRouter is the default. Two calls exist:
//
//   - Summarize receives sanitized text only and returns a free-text summary.
//   - Audit receives leading samples of the original and sanitized text and
//     returns a schema-validated leak report.
//
// Both refuse to run in local-only mode and without an API key. Transient
// failures (rate limits, 5xx, transport errors) are retried with capped
// exponential backoff.
//
// # Usage
//
//	client := cloud.NewClient(cloud.Config{APIKey: key}, logger)
//	summary, err := client.Summarize(ctx, sanitized)
//	audit, err := client.Audit(ctx, original, sanitized)
//
// API keys are never logged; use KeyFingerprint for diagnostics.
package cloud
