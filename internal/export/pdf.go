// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// =============================================================================
// PDF EXPORTER
// =============================================================================

// Page layout for rendered reports.
const (
	pdfMargin     = 15.0
	pdfLineHeight = 5.0
	pdfFontSize   = 10.0
)

// PDFExporter renders the report text as a paginated monospaced PDF.
type PDFExporter struct{}

// NewPDFExporter creates a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Export renders r.Text() to PDF.
func (e *PDFExporter) Export(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errNilReport
	}
	return RenderPDF(r.Text())
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return ".pdf"
}

// MimeType returns the MIME type for PDF.
func (e *PDFExporter) MimeType() string {
	return "application/pdf"
}

// RenderPDF lays out text on A4 pages in 10pt Courier with 15mm margins,
// wrapping long lines and breaking pages automatically. Characters outside
// cp1252 are replaced.
func RenderPDF(text string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetTitle("Privacy Analysis Report", true)
	doc.SetCreator("redactor", true)
	doc.AddPage()
	doc.SetFont("Courier", "", pdfFontSize)

	translate := doc.UnicodeTranslatorFromDescriptor("")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			doc.Ln(pdfLineHeight)
			continue
		}
		doc.MultiCell(0, pdfLineHeight, translate(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
