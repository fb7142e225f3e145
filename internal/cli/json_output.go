// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - The --json output envelope and per-command payloads.
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/workflow"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *string     `json:"error"`

	// ErrorType and Hint are set on failures with a known category.
	ErrorType string `json:"error_type,omitempty"`
	Hint      string `json:"hint,omitempty"`

	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND PAYLOADS
// =============================================================================

// OutputFiles lists artifacts a command wrote.
type OutputFiles struct {
	Sanitized string `json:"sanitized,omitempty"`
	Key       string `json:"key,omitempty"`
	Report    string `json:"report,omitempty"`
	Restored  string `json:"restored,omitempty"`
}

// ProcessData is the result of process and sanitize.
type ProcessData struct {
	Session workflow.Snapshot `json:"session"`
	Report  *export.Report    `json:"report,omitempty"`
	Files   OutputFiles       `json:"files"`
	Notes   []string          `json:"notes,omitempty"`

	// Sanitized is set when nothing was written to disk.
	Sanitized string `json:"sanitized,omitempty"`
}

// ScreenData is the result of screen.
type ScreenData struct {
	File         string                    `json:"file"`
	Screening    *screening.Result         `json:"screening"`
	Jurisdiction jurisdiction.Jurisdiction `json:"jurisdiction"`
}

// RiskData is the result of risk.
type RiskData struct {
	File         string         `json:"file"`
	Jurisdiction string         `json:"jurisdiction"`
	Risk         screening.Risk `json:"risk"`
	Failed       bool           `json:"failed"`
	Report       string         `json:"report,omitempty"`
}

// RestoreData is the result of restore.
type RestoreData struct {
	File          string   `json:"file"`
	Output        string   `json:"output,omitempty"`
	Applied       int      `json:"applied"`
	RemainingTags int      `json:"remaining_tags"`
	UnknownTags   []string `json:"unknown_tags,omitempty"`
}

// ProbeData is the result of probe.
type ProbeData struct {
	Connected      bool     `json:"connected"`
	ConfiguredURL  string   `json:"configured_url"`
	URL            string   `json:"url,omitempty"`
	FallbackUsed   bool     `json:"fallback_used"`
	Model          string   `json:"model"`
	ModelAvailable bool     `json:"model_available"`
	Models         []string `json:"models,omitempty"`
	Warning        string   `json:"warning,omitempty"`
	LocalOnly      bool     `json:"local_only"`
	RemoteStatus   string   `json:"remote_status"`
	Error          string   `json:"error,omitempty"`
}

// JurisdictionsData is the result of jurisdictions.
type JurisdictionsData struct {
	Default       string                      `json:"default"`
	Jurisdictions []jurisdiction.Jurisdiction `json:"jurisdictions"`
	Contexts      []jurisdiction.Preset       `json:"contexts"`
}

// KeyData is the result of key show. Values are present only with --reveal.
type KeyData struct {
	File       string            `json:"file"`
	Entries    int               `json:"entries"`
	Categories map[string]int    `json:"categories"`
	Tags       []string          `json:"tags"`
	Values     map[string]string `json:"values,omitempty"`
}

// ConfigData is the result of config show.
type ConfigData struct {
	Path   string      `json:"config_path"`
	Config interface{} `json:"config"`
}
