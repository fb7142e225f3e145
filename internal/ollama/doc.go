// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server that
// performs PII detection.
//
// Only the endpoints the redaction pipeline needs are implemented:
// /api/generate in non-streaming JSON mode, and /api/tags for model listing
// and reachability probing.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ClientConfig: base URL, model and timeouts (a value, never mutated by Probe)
//   - GenerateRequest / GenerateResponse: /api/generate payloads
//   - ClientError: categorized error with ErrorType
//
// # Usage
//
//	client := ollama.NewClient(ollama.DefaultConfig())
//
//	// Probe may switch localhost <-> 127.0.0.1; thread the result on.
//	cfg, err := client.Probe(ctx)
//	if err != nil {
//	    return err
//	}
//	client = client.WithConfig(cfg)
//
//	raw, err := client.GenerateJSON(ctx, prompt, &ollama.Options{
//	    Temperature: 0.1,
//	    NumCtx:      32768,
//	})
package ollama
