// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports reports to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a report to Markdown with YAML frontmatter.
func (e *MarkdownExporter) Export(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errNilReport
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML("Privacy analysis: "+r.FileName)))
	if r.SessionID != "" {
		sb.WriteString(fmt.Sprintf("session: %s\n", r.SessionID))
	}
	if !r.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("date: %s\n", r.CreatedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("jurisdiction: %s\n", escapeYAML(r.Jurisdiction)))
	sb.WriteString(fmt.Sprintf("risk: %s\n", r.Risk.Level))
	sb.WriteString("generator: redactor\n")
	sb.WriteString("---\n\n")

	sb.WriteString(e.body(r))

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from redactor on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// body renders everything below the frontmatter; the HTML exporter
// converts this part.
func (e *MarkdownExporter) body(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Privacy Analysis: %s\n\n", escapeMarkdown(r.FileName)))

	sb.WriteString("## Session Information\n\n")
	sb.WriteString(fmt.Sprintf("- **Jurisdiction**: %s\n", escapeMarkdown(r.Jurisdiction)))
	if r.Context != "" {
		sb.WriteString(fmt.Sprintf("- **Context**: %s\n", escapeMarkdown(oneLine(r.Context))))
	}
	sb.WriteString(fmt.Sprintf("- **Original length**: %d characters\n", r.Stats.OriginalLength))
	sb.WriteString(fmt.Sprintf("- **Sanitized length**: %d characters\n", r.Stats.RedactedLength))
	sb.WriteString(fmt.Sprintf("- **Redactions**: %d\n", r.Stats.PIICount))
	if r.Stats.Chunks > 0 {
		sb.WriteString(fmt.Sprintf("- **Chunks**: %d", r.Stats.Chunks))
		if r.Stats.FailedChunks > 0 {
			sb.WriteString(fmt.Sprintf(" (%d fell back to original text)", r.Stats.FailedChunks))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if r.Stats.FailedChunks > 0 {
		sb.WriteString("> **Warning**: some segments could not be redacted and appear unmodified in the sanitized output.\n\n")
	}

	sb.WriteString("## Risk Assessment (Local AI)\n\n")
	sb.WriteString(fmt.Sprintf("- **Level**: %s\n", strings.ToUpper(string(r.Risk.Level))))
	sb.WriteString(fmt.Sprintf("- **Reason**: %s\n", escapeMarkdown(oneLine(r.Risk.Reason))))
	if r.Risk.RegulatoryWarning != "" {
		sb.WriteString(fmt.Sprintf("- **Compliance**: %s\n", escapeMarkdown(oneLine(r.Risk.RegulatoryWarning))))
	}
	sb.WriteString("\n")

	sb.WriteString("## Document Summary (Cloud AI)\n\n")
	switch {
	case r.RemoteSkipped:
		sb.WriteString("*" + SkippedByUser + "*\n\n")
	case r.SummaryError != "":
		sb.WriteString(fmt.Sprintf("*Remote summary unavailable: %s*\n\n", escapeMarkdown(oneLine(r.SummaryError))))
	case r.Summary != "":
		sb.WriteString(strings.TrimSpace(r.Summary) + "\n\n")
	default:
		sb.WriteString("*Pending.*\n\n")
	}

	if r.Audit != nil {
		sb.WriteString("## Leak Audit (Cloud AI)\n\n")
		sb.WriteString(fmt.Sprintf("- **Score**: %d/100\n", r.Audit.Score))
		sb.WriteString(fmt.Sprintf("- **Precision**: %.2f\n", r.Audit.AccuracyMetrics.Precision))
		sb.WriteString(fmt.Sprintf("- **Recall**: %.2f\n\n", r.Audit.AccuracyMetrics.Recall))
		if r.Audit.Summary != "" {
			sb.WriteString(escapeMarkdown(oneLine(r.Audit.Summary)) + "\n\n")
		}
		if len(r.Audit.Leaks) == 0 {
			sb.WriteString("No privacy leaks identified in the audit sample.\n\n")
		} else {
			sb.WriteString("| Severity | Item | Type | Context |\n")
			sb.WriteString("|---|---|---|---|\n")
			for _, l := range r.Audit.Leaks {
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
					tableCell(l.Severity), tableCell(l.Item), tableCell(l.Type), tableCell(l.Context)))
			}
			sb.WriteString("\n")
		}
	} else if r.AuditError != "" {
		sb.WriteString("## Leak Audit (Cloud AI)\n\n")
		sb.WriteString(fmt.Sprintf("*Leak audit unavailable: %s*\n\n", escapeMarkdown(oneLine(r.AuditError))))
	}

	if e.options.IncludeSanitized && r.Sanitized != "" {
		sb.WriteString("## Sanitized Document\n\n")
		fence := "```"
		for strings.Contains(r.Sanitized, fence) {
			fence += "`"
		}
		sb.WriteString(fence + "\n")
		sb.WriteString(strings.TrimRight(r.Sanitized, "\n"))
		sb.WriteString("\n" + fence + "\n")
	}

	return sb.String()
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tableCell(s string) string {
	return strings.ReplaceAll(escapeMarkdown(oneLine(s)), "|", "\\|")
}
