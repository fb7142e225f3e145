// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the redactor packages.
//
// # Key Functions
//
// Model output:
//   - ExtractJSONObject: outermost {...} span of a noisy model response
//   - DecodeJSONObject: extract and unmarshal in one step
//
// String Utilities:
//   - Prefix: character-safe leading sample of a document
//   - TruncateRunes, TruncateWidth: display truncation
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	span, err := util.ExtractJSONObject(resp.Response)
//
//	sample := util.Prefix(doc.Text, 5000)
//
//	err := util.AtomicWriteFile(path, data, 0600)
package util
