// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders analysis reports and writes session artifacts.
//
// # Formats
//
//   - pdf: report text in monospaced A4 pages (default)
//   - txt: report text as-is
//   - md: Markdown with YAML frontmatter
//   - html: standalone page rendered from the Markdown body
//   - json: machine-readable bundle
//
// # Artifacts
//
//   - analysis_<base>.<ext>: the report
//   - sanitized_<base>.<ext>: sanitized document in its source format
//   - redaction_key_<base>.json: tag to original value map (0600)
//
// Reports never contain original text or key values.
package export
