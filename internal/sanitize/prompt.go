// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sanitize

import (
	"fmt"
	"strings"

	"github.com/jeranaias/redactor/internal/jurisdiction"
)

// promptTemplate takes: jurisdiction name, law, context, name, law, and
// the segment notice.
const promptTemplate = `
You are a high-performance data privacy engine complying with %s regulations (%s).
Your ONLY goal is to sanitize the text while PRESERVING ITS EXACT STRUCTURE AND FORMATTING.

DOCUMENT CONTEXT: %s
JURISDICTION: %s (%s)
%s
INSTRUCTIONS:
1. Identify Personally Identifiable Information (PII).
2. Replace PII with UNIQUE tags (e.g., [REDACTED_NAME_1]).
3. STRUCTURAL INTEGRITY: If the input is JSON, CSV, or code, DO NOT change keys, headers, delimiters, or logic. Only replace the sensitive values.
4. Return strictly valid JSON with the structure shown below.

JSON Schema:
{
  "redactedText": "The sanitized text content...",
  "map": {
    "[REDACTED_TAG]": "Original Value"
  }
}

Text to sanitize:
`

// BuildPrompt returns the instruction block for one chunk. The chunk text
// is appended by the caller. index is zero-based; the segment notice is
// only included when the document has more than one chunk.
func BuildPrompt(context string, j jurisdiction.Jurisdiction, index, total int) string {
	context = strings.TrimSpace(context)
	if context == "" {
		context = jurisdiction.DefaultContext
	}
	if j.ID == "" {
		j = jurisdiction.Default()
	}

	segment := ""
	if total > 1 {
		segment = fmt.Sprintf("SEGMENT: %d of %d of a larger document. Sanitize only this segment and return it in full.\n", index+1, total)
	}

	return fmt.Sprintf(promptTemplate, j.Name, j.Law, context, j.Name, j.Law, segment)
}
