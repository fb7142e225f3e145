// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sanitize redacts PII from documents of any size with a local
// language model.
//
// The document is split into line-aligned chunks. Each chunk is sent, one
// at a time and in order, with a prompt naming the target jurisdiction and
// document context and asking for a {redactedText, map} JSON envelope. The
// per-chunk maps are merged into one document map, first write wins.
//
// A chunk that cannot be redacted (backend error, unparseable answer,
// missing fields) keeps its original text and is reported in
// Result.Failures. Callers must surface that: a degraded result still
// contains raw PII.
package sanitize
