// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the redaction pipeline as a small HTTP API for the
// web front end and for scripting.
//
// # Endpoints
//
//   - GET  /                     - Liveness message and version
//   - GET  /health               - Backend and remote status
//   - GET  /connection           - Local model probe (with loopback fallback)
//   - GET  /jurisdictions        - Jurisdiction catalog and context presets
//   - POST /upload/pdf           - Extract text from an uploaded PDF
//   - POST /screen               - Suggest context and jurisdiction
//   - POST /sanitize             - Redact a document, return text and map
//   - POST /risk                 - Local risk assessment
//   - POST /restore              - Apply a redaction key to sanitized text
//   - POST /download/report      - Remote summary of sanitized text
//   - POST /download/risk-report - Risk assessment rendered as PDF
//
// Document endpoints take multipart/form-data with the document in the
// "file" field and optional "context" and "jurisdiction" fields. /restore
// also takes the key in the "key" field.
//
// Every request passes through recovery, security headers, CORS, request
// logging and a per-client token bucket. Local model work is serialized.
// In local-only mode /download/report answers 503.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000"}, ollamaClient, logger).
//		WithRemote(cloudClient)
//	if err := srv.Serve(ctx); err != nil {
//		return err
//	}
package server
