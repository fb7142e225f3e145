// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package screening runs the single-shot local model calls that bracket
// redaction: document screening (what is this, which jurisdiction) and
// privacy risk classification. Both look only at a leading sample of the
// document.
package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// ScreenSampleSize is how many leading characters screening sees.
	ScreenSampleSize = 5000

	// RiskSampleSize is how many leading characters risk assessment sees.
	RiskSampleSize = 10000
)

// ErrBackendUnreachable means the local model could not be contacted.
// The workflow offers a retry instead of failing the session.
var ErrBackendUnreachable = errors.New("local model backend is unreachable")

// Generator runs one JSON-mode prompt. *ollama.Client implements it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, opts *ollama.Options) (string, error)
}

// Screener performs screening and risk assessment against a local model.
type Screener struct {
	gen    Generator
	logger logging.Logger
}

// New creates a Screener. A nil logger uses the package default.
func New(gen Generator, logger logging.Logger) *Screener {
	if logger == nil {
		logger = logging.Default()
	}
	return &Screener{gen: gen, logger: logger}
}

// =============================================================================
// SCREENING
// =============================================================================

// Result is the screening verdict for a document sample.
type Result struct {
	DetectedContext         string   `json:"detectedContext"`
	SuggestedJurisdictionID string   `json:"suggestedJurisdictionId"`
	Findings                []string `json:"findings"`
	Explanation             string   `json:"explanation"`
}

// Jurisdiction resolves the suggestion against the catalog; unknown or
// empty suggestions resolve to the global entry.
func (r *Result) Jurisdiction() jurisdiction.Jurisdiction {
	return jurisdiction.Resolve(r.SuggestedJurisdictionID)
}

const screenPrompt = `Analyze the following text to identify its context and potential PII risks.
Determine which privacy jurisdiction (US, EU, Global, etc.) is most relevant.
Return a JSON object:
{
  "detectedContext": "short description of file type",
  "suggestedJurisdictionId": %s,
  "findings": ["list of potential PII types found"],
  "explanation": "friendly conversational explanation of why you chose these"
}
Text: `

// Screen classifies the leading ScreenSampleSize characters of text.
// A transport failure is returned wrapped in ErrBackendUnreachable.
func (s *Screener) Screen(ctx context.Context, text string) (*Result, error) {
	sample := util.Prefix(text, ScreenSampleSize)
	prompt := fmt.Sprintf(screenPrompt, quotedIDs()) + sample

	raw, err := s.gen.GenerateJSON(ctx, prompt, &ollama.Options{Temperature: 0.1})
	if err != nil {
		if ollama.IsUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
		}
		return nil, fmt.Errorf("screening failed: %w", err)
	}

	res, err := parseScreening(raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("screening complete",
		"context", res.DetectedContext, "jurisdiction", res.SuggestedJurisdictionID, "findings", len(res.Findings))
	return res, nil
}

// parseScreening reads the screening envelope leniently: findings may be
// a list or a single comma-separated string.
func parseScreening(raw string) (*Result, error) {
	span, err := util.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("screening failed: %w", err)
	}
	if !gjson.Valid(span) {
		return nil, fmt.Errorf("screening failed: response is not valid JSON")
	}

	doc := gjson.Parse(span)
	res := &Result{
		DetectedContext:         strings.TrimSpace(doc.Get("detectedContext").String()),
		SuggestedJurisdictionID: strings.ToLower(strings.TrimSpace(doc.Get("suggestedJurisdictionId").String())),
		Explanation:             strings.TrimSpace(doc.Get("explanation").String()),
	}

	findings := doc.Get("findings")
	switch {
	case findings.IsArray():
		for _, f := range findings.Array() {
			if v := strings.TrimSpace(f.String()); v != "" {
				res.Findings = append(res.Findings, v)
			}
		}
	case findings.Type == gjson.String:
		for _, f := range strings.Split(findings.String(), ",") {
			if v := strings.TrimSpace(f); v != "" {
				res.Findings = append(res.Findings, v)
			}
		}
	}

	if _, ok := jurisdiction.Lookup(res.SuggestedJurisdictionID); !ok {
		res.SuggestedJurisdictionID = jurisdiction.DefaultID
	}
	return res, nil
}

func quotedIDs() string {
	ids := jurisdiction.IDs()
	for i, id := range ids {
		ids[i] = `"` + id + `"`
	}
	return strings.Join(ids, "|")
}
