// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageHeader delimits extracted pages.
const pageHeader = "--- Page %d ---\n"

// ExtractPDF returns the plain text of every page, each preceded by a
// "--- Page N ---" line and followed by a blank line, plus the page count.
// Pages without extractable text keep their header.
func ExtractPDF(data []byte) (text string, pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("%w: %v", ErrPDFExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrPDFExtraction, err)
	}

	var b strings.Builder
	total := reader.NumPage()
	found := false
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, pageHeader, i)
		page := reader.Page(i)
		if !page.V.IsNull() {
			content, err := page.GetPlainText(nil)
			if err != nil {
				return "", 0, fmt.Errorf("%w: page %d: %v", ErrPDFExtraction, i, err)
			}
			if strings.TrimSpace(content) != "" {
				found = true
			}
			b.WriteString(content)
		}
		b.WriteString("\n\n")
	}

	if !found {
		return "", total, fmt.Errorf("%w: no text layer (scanned document?)", ErrEmpty)
	}
	return b.String(), total, nil
}
