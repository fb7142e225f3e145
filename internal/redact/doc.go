// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package redact defines the redaction tag grammar and the tag-to-value map
// that makes sanitization reversible.
//
// # Tags
//
// A tag has the form [REDACTED_<CATEGORY>] or [REDACTED_<CATEGORY>_<N>],
// for example [REDACTED_EMAIL_2]. The local model chooses the tags; this
// package only recognizes and counts them.
//
// # Key Types
//
//   - Map: tag -> original value, merged chunk by chunk with first-write-wins
//   - Collision: a tag that a later chunk tried to rebind
//
// # Usage
//
//	master, collisions := redact.MergeAll(chunkMaps...)
//	restored, applied := redact.Restore(sanitized, master)
//	data, _ := redact.ExportKey(master)
package redact
