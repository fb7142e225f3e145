// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// SUMMARY
// =============================================================================

const summarySystemInstruction = `You are a professional assistant.
You are receiving text that has been locally sanitized (PII redacted).
Your job is to provide a concise, professional summary of the content.

Input Context:
- Text contains [REDACTED_TYPE] placeholders.
- Focus on the non-sensitive business logic, events, or main topics.
- The document might be quite long; provide a structured overview.`

// NoSummary is returned when the model answers with empty content.
const NoSummary = "No summary generated."

// Summarize asks the remote model for a summary of sanitized text. Only
// sanitized text may be passed here.
func (c *Client) Summarize(ctx context.Context, sanitized string) (string, error) {
	params := chatParams(c.cfg.SummaryModel, summarySystemInstruction, sanitized)
	params.Temperature = openai.Float(c.cfg.SummaryTemperature)

	content, err := c.complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("summary failed: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return NoSummary, nil
	}
	return content, nil
}

// =============================================================================
// LEAK AUDIT
// =============================================================================

// AuditSampleSize is how many leading characters of each text the audit
// compares.
const AuditSampleSize = 15000

// Severity values used by the audit.
const (
	SeverityCritical = "Critical"
	SeverityWarning  = "Warning"
)

// Leak is one piece of sensitive data the auditor found in sanitized text.
type Leak struct {
	Item     string `json:"item"`
	Type     string `json:"type"`
	Context  string `json:"context"`
	Severity string `json:"severity"`
}

// AccuracyMetrics estimates redaction quality.
type AccuracyMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// AuditResult is the remote leak comparison verdict.
type AuditResult struct {
	Score           int             `json:"score"`
	Leaks           []Leak          `json:"leaks"`
	Summary         string          `json:"summary"`
	AccuracyMetrics AccuracyMetrics `json:"accuracyMetrics"`
}

// Critical counts leaks with critical severity.
func (r *AuditResult) Critical() int {
	n := 0
	for _, l := range r.Leaks {
		if strings.EqualFold(l.Severity, SeverityCritical) {
			n++
		}
	}
	return n
}

const auditSystemInstruction = `You are a privacy auditor. You compare an ORIGINAL document with its SANITIZED version.
Identify every piece of personally identifiable or sensitive information from the ORIGINAL that is still
readable in the SANITIZED text (names, contact details, identifiers, addresses, account numbers, health data).
Placeholders of the form [REDACTED_TYPE] or [REDACTED_TYPE_N] are correct redactions and are not leaks.

Score the sanitization from 0 (everything leaked) to 100 (nothing leaked).
Severity is "Critical" for direct identifiers and "Warning" for indirect or quasi-identifiers.
Estimate precision (share of redactions that were real PII) and recall (share of PII that was redacted) between 0 and 1.
Respond only with JSON matching the schema.`

var auditSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"score": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		"leaks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"item":     map[string]any{"type": "string"},
					"type":     map[string]any{"type": "string"},
					"context":  map[string]any{"type": "string"},
					"severity": map[string]any{"type": "string", "enum": []string{SeverityCritical, SeverityWarning}},
				},
				"required":             []string{"item", "type", "context", "severity"},
				"additionalProperties": false,
			},
		},
		"summary": map[string]any{"type": "string"},
		"accuracyMetrics": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"precision": map[string]any{"type": "number"},
				"recall":    map[string]any{"type": "number"},
			},
			"required":             []string{"precision", "recall"},
			"additionalProperties": false,
		},
	},
	"required":             []string{"score", "leaks", "summary", "accuracyMetrics"},
	"additionalProperties": false,
}

// Audit sends leading samples of both texts for leak comparison. This is
// the only remote call that ever receives original text.
func (c *Client) Audit(ctx context.Context, original, sanitized string) (*AuditResult, error) {
	content := "ORIGINAL:\n" + util.Prefix(original, AuditSampleSize) +
		"\n\nSANITIZED:\n" + util.Prefix(sanitized, AuditSampleSize)

	params := chatParams(c.cfg.AuditModel, auditSystemInstruction, content)
	params.Temperature = openai.Float(0)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "leak_audit",
				Schema: auditSchema,
				Strict: openai.Bool(true),
			},
		},
	}

	raw, err := c.complete(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}

	var res AuditResult
	if err := util.DecodeJSONObject(raw, &res); err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	res.normalize()
	return &res, nil
}

func (r *AuditResult) normalize() {
	r.Score = clamp(r.Score, 0, 100)
	r.AccuracyMetrics.Precision = clampRatio(r.AccuracyMetrics.Precision)
	r.AccuracyMetrics.Recall = clampRatio(r.AccuracyMetrics.Recall)
	if r.Leaks == nil {
		r.Leaks = []Leak{}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampRatio(v float64) float64 {
	return max(0, min(v, 1))
}
