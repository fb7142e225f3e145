// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display, remediation hints and exit codes.
//
// Commands always return errors; main displays them once with DisplayError
// and exits with GetExitCode.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/config"
	"github.com/jeranaias/redactor/internal/document"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/storage"
	"github.com/jeranaias/redactor/internal/workflow"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitCanceled      = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError is a missing file or record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with a usage example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(name, usage string) error {
	return NewValidationErrorWithExample(name, "", "required argument missing", usage)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w. In JSON mode it writes an error envelope
// for command instead.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		resp.Hint = Hint(err)
		_ = resp.Print(w)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := Hint(err); hint != "" {
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render("hint:"), hint)
	}
	fmt.Fprintln(w)
}

// Hint returns a remediation for well-known failures, or "".
func Hint(err error) string {
	var modelErr *ollama.ClientError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ""
	case ollama.IsModelNotFound(err):
		model := "<model>"
		if errors.As(err, &modelErr) {
			if m, ok := strings.CutPrefix(modelErr.Message, "model not found: "); ok {
				model = m
			}
		}
		return fmt.Sprintf("Pull the model first: ollama pull %s (or pass --model)", model)
	case ollama.IsUnreachable(err), errors.Is(err, screening.ErrBackendUnreachable):
		return "Start Ollama with 'ollama serve', or point --ollama-url at a running backend."
	case errors.Is(err, cloud.ErrNotConfigured):
		return "Set OPENROUTER_API_KEY or run 'redactor config set remote.api_key <key>'."
	case errors.Is(err, cloud.ErrAuthFailed):
		return "The remote API rejected the key; check remote.api_key."
	case errors.Is(err, cloud.ErrRateLimited):
		return "The remote API is rate limiting; wait a minute and retry."
	case errors.Is(err, cloud.ErrOfflineMode):
		return "Local-only mode is on; drop --local-only or set session.local_only = false."
	case errors.Is(err, document.ErrUnsupportedType):
		return "Supported document types: " + strings.Join(document.SupportedExtensions(), " ")
	case errors.Is(err, document.ErrTooLarge):
		return "Split the document; the limit is 5 MB."
	case errors.Is(err, document.ErrPDFExtraction):
		return "The PDF has no text layer. Run OCR on it first, then retry."
	case errors.Is(err, document.ErrEmpty):
		return "The document contains no text."
	case errors.Is(err, redact.ErrInvalidKey):
		return "A redaction key is a JSON object mapping tags like [REDACTED_EMAIL_1] to original values."
	case errors.Is(err, workflow.ErrStaleSession):
		return "The session was reset while running; start again."
	}

	var verr config.ValidateErrors
	if errors.As(err, &verr) {
		return "Fix the values above in ~/.redactor/config.toml or with 'redactor config set'."
	}
	return ""
}

// errorType names the category of err for JSON output.
func errorType(err error) string {
	var vErr *ValidationError
	var nfErr *NotFoundError
	switch {
	case errors.As(err, &vErr):
		return "validation_error"
	case errors.As(err, &nfErr):
		return "not_found_error"
	case ollama.IsUnreachable(err), errors.Is(err, screening.ErrBackendUnreachable):
		return "backend_unavailable"
	case ollama.IsModelNotFound(err):
		return "model_not_found"
	case errors.Is(err, cloud.ErrAuthFailed), errors.Is(err, cloud.ErrNotConfigured):
		return "remote_auth_error"
	case errors.Is(err, document.ErrUnsupportedType), errors.Is(err, document.ErrTooLarge),
		errors.Is(err, document.ErrEmpty), errors.Is(err, document.ErrPDFExtraction):
		return "document_error"
	default:
		return "error"
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var vErr *ValidationError
	var nfErr *NotFoundError
	var cfgErr config.ValidateErrors

	switch {
	case errors.Is(err, context.Canceled):
		return ExitCanceled
	case errors.Is(err, context.DeadlineExceeded), ollama.IsTimeout(err):
		return ExitTimeoutError
	case errors.As(err, &vErr),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, document.ErrTooLarge),
		errors.Is(err, document.ErrEmpty),
		errors.Is(err, redact.ErrInvalidKey):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, cloud.ErrAuthFailed), errors.Is(err, cloud.ErrNotConfigured):
		return ExitAuthError
	case ollama.IsUnreachable(err), errors.Is(err, screening.ErrBackendUnreachable):
		return ExitNetworkError
	case errors.As(err, &nfErr),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, storage.ErrNotFound),
		ollama.IsModelNotFound(err):
		return ExitNotFoundError
	}
	return ExitGeneralError
}
