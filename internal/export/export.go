// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders analysis reports and writes the session's
// durable artifacts: the report, the sanitized document and the
// redaction key.
package export

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/util"
)

var errNilReport = errors.New("report is nil")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a report in one format.
type Exporter interface {
	// Export converts a report to the target format and returns the content.
	Export(r *Report) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".pdf").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeSanitized adds the sanitized text to Markdown, HTML and JSON reports.
	IncludeSanitized bool

	// Theme for HTML export ("light" or "dark").
	// Default: "light"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir: ".",
		Theme:     "light",
	}
}

// Formats lists the names accepted by ForFormat.
func Formats() []string {
	return []string{"pdf", "txt", "md", "html", "json"}
}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return NewPDFExporter(), nil
	case "txt", "text":
		return TextExporter{}, nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ReportFileName returns "analysis_<base><ext>".
func ReportFileName(base, ext string) string {
	return "analysis_" + sanitizeFilename(base) + ext
}

// KeyFileName returns "redaction_key_<base>.json".
func KeyFileName(base string) string {
	return "redaction_key_" + sanitizeFilename(base) + ".json"
}

// SanitizedFileName returns "sanitized_<base><ext>".
func SanitizedFileName(base, ext string) string {
	return "sanitized_" + sanitizeFilename(base) + ext
}

// ExportToFile renders r with exporter into the output directory and
// returns the written path.
func ExportToFile(r *Report, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if r == nil {
		return "", errNilReport
	}

	content, err := exporter.Export(r)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	path := filepath.Join(outputDir(opts), ReportFileName(r.Base(), exporter.FileExtension()))
	if err := util.AtomicWriteFileWithDir(path, content, 0o644, 0o755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		if err := openFile(path); err != nil {
			// Non-fatal - file was still created successfully
			fmt.Fprintf(os.Stderr, "Warning: Could not open file: %v\n", err)
		}
	}
	return path, nil
}

// WriteKey exports the redaction key next to the other artifacts with
// owner-only permissions.
func WriteKey(base string, m redact.Map, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	path := filepath.Join(outputDir(opts), KeyFileName(base))
	if err := redact.WriteKeyFile(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSanitized writes the sanitized document in the original file's
// format and returns the written path.
func WriteSanitized(base, ext, sanitized string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	data, outExt := SanitizedArtifact(sanitized, ext)
	path := filepath.Join(outputDir(opts), SanitizedFileName(base, outExt))
	if err := util.AtomicWriteFileWithDir(path, data, 0o644, 0o755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func outputDir(opts *Options) string {
	if opts.OutputDir == "" {
		return "."
	}
	return opts.OutputDir
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	maxLen := 50
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := []rune{}
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "document"
	}
	return string(result)
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
