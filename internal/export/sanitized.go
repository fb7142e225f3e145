// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// SanitizedArtifact serializes sanitized text per the original extension
// and returns the bytes with the extension to write them under.
//
// Valid JSON is pretty-printed and anything else is written as-is. PDF
// sources become plain text.
func SanitizedArtifact(text, ext string) ([]byte, string) {
	ext = strings.ToLower(ext)
	switch ext {
	case ".json":
		if gjson.Valid(text) {
			return pretty.Pretty([]byte(text)), ext
		}
		return []byte(text), ext
	case ".pdf", "":
		return []byte(text), ".txt"
	default:
		return []byte(text), ext
	}
}
