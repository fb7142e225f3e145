// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// buildPDF renders one page per entry; an empty entry yields a blank page.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// =============================================================================
// TEXT FORMATS
// =============================================================================

func TestLoadFile_TextFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    Kind
	}{
		{"notes.txt", "Call Jane at 555-0100.\n", KindText},
		{"README.md", "# Title\n\nSome *markdown*.\n", KindMarkdown},
		{"people.csv", "name,email\nJane,jane@example.com\n", KindCSV},
		{"record.json", `{"name": "Jane", "ssn": "123-45-6789"}`, KindJSON},
		{"UPPER.TXT", "shouting\n", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.name, []byte(tt.content))

			doc, err := LoadFile(path, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.content, doc.Text)
			assert.Equal(t, tt.kind, doc.Kind)
			assert.Equal(t, tt.name, doc.Name)
			assert.Equal(t, strings.ToLower(filepath.Ext(tt.name)), doc.Ext)
			assert.Equal(t, int64(len(tt.content)), doc.Size)
			assert.NotEmpty(t, doc.MIME)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "image.png", []byte("not really"))
		_, err := LoadFile(path, 0)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "gone.txt"), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "folder.txt")
		require.NoError(t, os.Mkdir(dir, 0o700))
		_, err := LoadFile(dir, 0)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("too large", func(t *testing.T) {
		path := writeFile(t, "big.txt", bytes.Repeat([]byte("a"), 2048))
		_, err := LoadFile(path, 1024)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("empty", func(t *testing.T) {
		path := writeFile(t, "blank.txt", []byte(" \n\t\n"))
		_, err := LoadFile(path, 0)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("binary content with text extension", func(t *testing.T) {
		data := append([]byte{0x00, 0x01, 0x02, 0xff, 0xfe}, bytes.Repeat([]byte{0x00}, 64)...)
		path := writeFile(t, "sneaky.txt", data)
		_, err := LoadFile(path, 0)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestLoad_SizeLimitWithoutStat(t *testing.T) {
	_, err := Load("stream.txt", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	doc, err := Load("stream.txt", strings.NewReader(strings.Repeat("x", 10)), 10)
	require.NoError(t, err)
	assert.Len(t, doc.Text, 10)
}

func TestFromText(t *testing.T) {
	doc, err := FromText("", "hello")
	require.NoError(t, err)
	assert.Equal(t, "pasted.txt", doc.Name)
	assert.Equal(t, "pasted", doc.Base())
	assert.Equal(t, KindText, doc.Kind)

	_, err = FromText("x.txt", "   ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDocumentBase(t *testing.T) {
	doc := &Document{Name: "q3.report.final.pdf"}
	assert.Equal(t, "q3.report.final", doc.Base())
}

// =============================================================================
// PDF
// =============================================================================

func TestExtractPDF_Pages(t *testing.T) {
	data := buildPDF(t, "Quarterly report", "Jane Roe signed")

	text, pages, err := ExtractPDF(data)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	first := strings.Index(text, "--- Page 1 ---\n")
	second := strings.Index(text, "--- Page 2 ---\n")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.Contains(t, text[first:second], "Quarterly")
	assert.Contains(t, text[second:], "Jane")
	assert.True(t, strings.HasSuffix(text, "\n\n"))
}

func TestLoadFile_PDF(t *testing.T) {
	path := writeFile(t, "scan.pdf", buildPDF(t, "Patient intake"))

	doc, err := LoadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, KindPDF, doc.Kind)
	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, "application/pdf", doc.MIME)
	assert.Contains(t, doc.Text, "Patient")
}

func TestExtractPDF_NoTextLayer(t *testing.T) {
	_, pages, err := ExtractPDF(buildPDF(t, ""))
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 1, pages)
}

func TestExtractPDF_Malformed(t *testing.T) {
	_, _, err := ExtractPDF([]byte("%PDF-1.4\nthis is not a real pdf"))
	assert.ErrorIs(t, err, ErrPDFExtraction)
}

func TestLoad_PDFExtensionWithoutPDFData(t *testing.T) {
	_, err := Load("fake.pdf", strings.NewReader("plain text pretending"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
