// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screening

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/util"
)

// RiskLevel is the privacy risk classification.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// ParseRiskLevel normalizes a model-provided level. Anything unrecognized
// is Low.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskHigh
	case "medium":
		return RiskMedium
	default:
		return RiskLow
	}
}

// Fallback texts used when the model answer is missing or unusable.
const (
	ReasonNotProvided     = "No reason provided."
	WarningNotProvided    = "No specific regulation cited."
	ReasonParseFailed     = "Could not determine risk (JSON parse error)."
	ReasonAssessmentError = "Local assessment failed."
)

// Risk is the local privacy risk classification of a document.
type Risk struct {
	Level             RiskLevel `json:"riskLevel"`
	Reason            string    `json:"riskReason"`
	RegulatoryWarning string    `json:"regulatoryWarning,omitempty"`

	// Failed is set when Level is a fallback rather than a model verdict.
	Failed bool `json:"-"`
}

const riskPrompt = `You are a Data Protection Officer (DPO). Evaluate privacy risks for this text under %s.

Classify the Privacy Risk Level:
- High: Sensitive PII (Health, Finance, Government IDs, Passwords). High risk of severe violations.
- Medium: Internal business info, emails, names. Potential compliance issues.
- Low: Public info, generic knowledge, code without secrets.

Return valid JSON:
{
  "riskLevel": "High" | "Medium" | "Low",
  "riskReason": "Brief explanation of the risk.",
  "regulatoryWarning": "Which regulations or articles are implicated by the data types found."
}

Text: `

// AssessRisk classifies the leading RiskSampleSize characters of text.
// It never fails: transport errors and unusable answers produce a Low
// fallback with Failed set.
//
// Only a prefix is assessed; sensitive data that appears later in a long
// document does not influence the level.
func (s *Screener) AssessRisk(ctx context.Context, text string, j jurisdiction.Jurisdiction) Risk {
	if j.ID == "" {
		j = jurisdiction.Default()
	}
	sample := util.Prefix(text, RiskSampleSize)
	prompt := fmt.Sprintf(riskPrompt, j.Label()) + sample

	raw, err := s.gen.GenerateJSON(ctx, prompt, &ollama.Options{Temperature: 0.1})
	if err != nil {
		s.logger.Warn("risk assessment failed", "error", err)
		return Risk{Level: RiskLow, Reason: ReasonAssessmentError, Failed: true}
	}

	span, err := util.ExtractJSONObject(raw)
	if err != nil || !gjson.Valid(span) {
		s.logger.Warn("risk assessment returned unparseable JSON", "chars", len(raw))
		return Risk{Level: RiskLow, Reason: ReasonParseFailed, Failed: true}
	}

	doc := gjson.Parse(span)
	risk := Risk{
		Level:             ParseRiskLevel(doc.Get("riskLevel").String()),
		Reason:            strings.TrimSpace(doc.Get("riskReason").String()),
		RegulatoryWarning: strings.TrimSpace(doc.Get("regulatoryWarning").String()),
	}
	if risk.Reason == "" {
		risk.Reason = ReasonNotProvided
	}
	if risk.RegulatoryWarning == "" {
		risk.RegulatoryWarning = WarningNotProvided
	}
	return risk
}
