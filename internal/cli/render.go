// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Terminal rendering of reports and redaction keys.

package cli

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/redact"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, or returns it unchanged
// when the renderer cannot be built.
func renderMarkdown(content string, width int) string {
	markdownOnce.Do(func() {
		if width <= 0 || width > 100 {
			width = 100
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// renderReport returns the report for display. Terminals get the Markdown
// rendition through glamour; everything else gets the plain report text.
func renderReport(r *export.Report, fancy bool) string {
	if !fancy {
		return r.Text()
	}
	md, err := export.NewMarkdownExporter(&export.Options{}).Export(r)
	if err != nil {
		return r.Text()
	}
	return renderMarkdown(stripFrontMatter(string(md)), GetTerminalWidth())
}

// stripFrontMatter drops a leading YAML block, which glamour would print verbatim.
func stripFrontMatter(md string) string {
	if !strings.HasPrefix(md, "---\n") {
		return md
	}
	if end := strings.Index(md[4:], "\n---\n"); end >= 0 {
		return strings.TrimLeft(md[4+end+5:], "\n")
	}
	return md
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlight colors code for a 256-color terminal. It returns code unchanged
// on any failure.
func highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, it); err != nil {
		return code
	}
	return b.String()
}

// highlightTags colors every redaction tag in text.
func highlightTags(text string) string {
	if !ColorsEnabled() {
		return text
	}
	for _, tag := range redact.Tags(text) {
		text = strings.ReplaceAll(text, tag, TagStyle.Render(tag))
	}
	return text
}
