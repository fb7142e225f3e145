// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/screening"
)

// =============================================================================
// REPORT MODEL
// =============================================================================

// Stats summarizes a sanitization run.
type Stats struct {
	OriginalLength int `json:"originalLength"`
	RedactedLength int `json:"redactedLength"`
	PIICount       int `json:"piiCount"`
	Chunks         int `json:"chunks"`
	FailedChunks   int `json:"failedChunks"`
}

// Report is everything the final analysis artifact shows. It never holds
// original document text or redaction key values.
type Report struct {
	SessionID    string    `json:"sessionId"`
	FileName     string    `json:"fileName"`
	CreatedAt    time.Time `json:"createdAt"`
	Jurisdiction string    `json:"jurisdiction"`
	Context      string    `json:"context"`

	Risk  screening.Risk `json:"risk"`
	Stats Stats          `json:"stats"`

	// RemoteSkipped is set on the decline path.
	RemoteSkipped bool   `json:"remoteSkipped"`
	Summary       string `json:"summary,omitempty"`
	SummaryError  string `json:"summaryError,omitempty"`

	Audit      *cloud.AuditResult `json:"audit,omitempty"`
	AuditError string             `json:"auditError,omitempty"`

	// Sanitized is included by bundle exporters when Options.IncludeSanitized is set.
	Sanitized string `json:"sanitized,omitempty"`
}

// Base returns the file name without extension, or "document".
func (r *Report) Base() string {
	base := r.FileName
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		return "document"
	}
	return base
}

// =============================================================================
// REPORT TEXT
// =============================================================================

// SkippedByUser marks a report whose remote analysis was declined.
const SkippedByUser = "Remote analysis skipped by user."

// RiskText renders the local risk block.
func RiskText(risk screening.Risk) string {
	var b strings.Builder
	b.WriteString("PRIVACY RISK ASSESSMENT (Local AI)\n")
	b.WriteString("----------------------------------\n")
	fmt.Fprintf(&b, "Level:  %s\n", strings.ToUpper(string(risk.Level)))
	fmt.Fprintf(&b, "Reason: %s\n", risk.Reason)
	if risk.RegulatoryWarning != "" {
		fmt.Fprintf(&b, "Compliance: %s\n", risk.RegulatoryWarning)
	}
	return b.String()
}

// Text renders the plain report. The summary section is absent until the
// consent decision has been made. Chunks that kept their original text are
// called out right after the risk block.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(RiskText(r.Risk))
	if r.Stats.FailedChunks > 0 {
		fmt.Fprintf(&b, "\nWARNING: Privacy degraded. %d of %d chunks could not be redacted and appear unmodified in the sanitized output.\n",
			r.Stats.FailedChunks, r.Stats.Chunks)
	}

	switch {
	case r.RemoteSkipped:
		b.WriteString("\nDOCUMENT SUMMARY (Cloud AI)\n")
		b.WriteString("---------------------------\n")
		b.WriteString(SkippedByUser + "\n")
	case r.Summary != "" || r.SummaryError != "":
		b.WriteString("\nDOCUMENT SUMMARY (Cloud AI)\n")
		b.WriteString("---------------------------\n")
		if r.SummaryError != "" {
			fmt.Fprintf(&b, "Remote summary unavailable: %s\n", r.SummaryError)
		} else {
			b.WriteString(strings.TrimRight(r.Summary, "\n") + "\n")
		}
	}

	if r.Audit != nil {
		b.WriteString("\nLEAK AUDIT (Cloud AI)\n")
		b.WriteString("---------------------\n")
		fmt.Fprintf(&b, "Score:     %d/100\n", r.Audit.Score)
		fmt.Fprintf(&b, "Precision: %.2f\n", r.Audit.AccuracyMetrics.Precision)
		fmt.Fprintf(&b, "Recall:    %.2f\n", r.Audit.AccuracyMetrics.Recall)
		if r.Audit.Summary != "" {
			fmt.Fprintf(&b, "Summary:   %s\n", r.Audit.Summary)
		}
		if len(r.Audit.Leaks) == 0 {
			b.WriteString("No privacy leaks identified in the audit sample.\n")
		}
		for _, l := range r.Audit.Leaks {
			fmt.Fprintf(&b, "- [%s] %s (%s): %q\n", l.Severity, l.Item, l.Type, l.Context)
		}
	} else if r.AuditError != "" {
		b.WriteString("\nLEAK AUDIT (Cloud AI)\n")
		b.WriteString("---------------------\n")
		fmt.Fprintf(&b, "Leak audit unavailable: %s\n", r.AuditError)
	}

	return b.String()
}

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter exports the plain report text.
type TextExporter struct{}

// Export returns the report text.
func (TextExporter) Export(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errNilReport
	}
	return []byte(r.Text()), nil
}

// FileExtension returns ".txt".
func (TextExporter) FileExtension() string { return ".txt" }

// MimeType returns the MIME type for plain text.
func (TextExporter) MimeType() string { return "text/plain; charset=utf-8" }
