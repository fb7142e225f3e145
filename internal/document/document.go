// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document loads user files as plain text. Text formats are read
// as-is; PDFs go through page-by-page text extraction.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// MaxSize is the default upload limit.
const MaxSize int64 = 5 * 1024 * 1024

var (
	// ErrEmpty is returned when a file has no text content.
	ErrEmpty = errors.New("document is empty")

	// ErrUnsupportedType is returned for extensions or content outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned when a file exceeds the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrPDFExtraction is returned when a PDF cannot be parsed.
	ErrPDFExtraction = errors.New("PDF text extraction failed")
)

// Kind is the loader family for an extension.
type Kind int

const (
	KindText Kind = iota
	KindJSON
	KindCSV
	KindMarkdown
	KindPDF
)

var extensions = map[string]Kind{
	".txt":  KindText,
	".md":   KindMarkdown,
	".json": KindJSON,
	".csv":  KindCSV,
	".pdf":  KindPDF,
}

// SupportedExtensions lists accepted file extensions.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".json", ".csv", ".pdf"}
}

// KindOf returns the kind for a file name's extension.
func KindOf(name string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return k, ok
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is a loaded file. It is immutable once loaded.
type Document struct {
	Name  string
	Ext   string
	Kind  Kind
	MIME  string
	Size  int64
	Pages int
	Text  string
}

// Base returns the file name without its extension.
func (d *Document) Base() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// FromText wraps already-decoded text, as pasted input or tests do.
func FromText(name, text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	if name == "" {
		name = "pasted.txt"
	}
	kind, ok := KindOf(name)
	if !ok || kind == KindPDF {
		kind = KindText
	}
	return &Document{
		Name: filepath.Base(name),
		Ext:  strings.ToLower(filepath.Ext(name)),
		Kind: kind,
		MIME: "text/plain; charset=utf-8",
		Size: int64(len(text)),
		Text: text,
	}, nil
}

// =============================================================================
// LOADING
// =============================================================================

// LoadFile reads and decodes a file from disk. maxSize <= 0 uses MaxSize.
func LoadFile(path string, maxSize int64) (*Document, error) {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	if _, ok := KindOf(path); !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedType,
			filepath.Ext(path), strings.Join(SupportedExtensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedType, path)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%w (%s), max %s", ErrTooLarge, formatSize(info.Size()), formatSize(maxSize))
	}

	return Load(filepath.Base(path), f, maxSize)
}

// Load decodes content read from r. name supplies the extension.
// maxSize <= 0 uses MaxSize.
func Load(name string, r io.Reader, maxSize int64) (*Document, error) {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	kind, ok := KindOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(name))
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w, max %s", ErrTooLarge, formatSize(maxSize))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	doc := &Document{
		Name: filepath.Base(name),
		Ext:  strings.ToLower(filepath.Ext(name)),
		Kind: kind,
		MIME: detectMIME(data),
		Size: int64(len(data)),
	}

	if kind == KindPDF {
		if !strings.HasPrefix(doc.MIME, "application/pdf") {
			return nil, fmt.Errorf("%w: %s does not contain PDF data (%s)", ErrUnsupportedType, doc.Name, doc.MIME)
		}
		text, pages, err := ExtractPDF(data)
		if err != nil {
			return nil, err
		}
		doc.Text = text
		doc.Pages = pages
		return doc, nil
	}

	if !isText(data) {
		return nil, fmt.Errorf("%w: %s looks binary (%s)", ErrUnsupportedType, doc.Name, doc.MIME)
	}
	doc.Text = string(data)
	return doc, nil
}

// detectMIME uses the stdlib sniffer first and falls back to mimetype when
// it is ambiguous.
func detectMIME(head []byte) string {
	if len(head) == 0 {
		return "application/octet-stream"
	}
	if mt := http.DetectContentType(head); mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}

// isText reports whether content descends from text/plain in the
// mimetype tree; JSON and CSV do.
func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func formatSize(n int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%dKB", n/kb)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
