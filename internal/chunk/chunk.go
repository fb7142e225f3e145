// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chunk splits large documents into bounded, line-aligned segments
// that fit a local model's context window.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultLimit is the default per-chunk character budget.
const DefaultLimit = 12000

// Split divides text into ordered chunks of at most limit characters.
//
// When a chunk would end before the end of text, the cut is moved back to
// just after the last newline inside the chunk so that line-oriented formats
// (CSV, JSON, logs) are not split mid-line. A chunk with no newline after its
// first character is cut at the raw limit.
//
// Concatenating the result always reproduces text exactly. Empty text yields
// an empty (nil) slice. A non-positive limit falls back to DefaultLimit.
func Split(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var chunks []string
	cursor := 0
	for cursor < len(text) {
		end := advance(text, cursor, limit)
		if end < len(text) {
			if nl := strings.LastIndexByte(text[cursor:end], '\n'); nl > 0 {
				end = cursor + nl + 1
			}
		}
		chunks = append(chunks, text[cursor:end])
		cursor = end
	}
	return chunks
}

// advance returns the byte offset reached after moving n characters forward
// from start, or len(text) if the text is shorter. Invalid UTF-8 bytes count
// as one character each so the original bytes are preserved.
func advance(text string, start, n int) int {
	pos := start
	for i := 0; i < n && pos < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
	}
	return pos
}
