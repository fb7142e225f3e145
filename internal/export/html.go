// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports reports to a standalone HTML page with embedded CSS.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		// Raw HTML in the source is escaped, not passed through.
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// Export renders the Markdown report body to HTML.
func (e *HTMLExporter) Export(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errNilReport
	}

	md := NewMarkdownExporter(e.options).body(r)
	var body bytes.Buffer
	if err := e.markdown.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	theme := "light-theme"
	if e.options.Theme == "dark" {
		theme = "dark-theme"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString("Privacy analysis: "+r.FileName)))
	sb.WriteString("    <meta name=\"generator\" content=\"redactor\">\n")
	if !r.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", r.CreatedAt.Format(time.RFC3339)))
	}
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s\">\n", theme))
	sb.WriteString(fmt.Sprintf("<main class=\"report risk-%s\">\n", strings.ToLower(string(r.Risk.Level))))
	sb.Write(body.Bytes())
	sb.WriteString("</main>\n")
	sb.WriteString(fmt.Sprintf("<footer>Exported from redactor on %s</footer>\n",
		html.EscapeString(time.Now().Format("January 2, 2006 at 3:04 PM"))))
	sb.WriteString("</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --accent: #7aa2f7;
            --risk-high: #f7768e;
            --risk-medium: #e0af68;
            --risk-low: #9ece6a;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f6f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --accent: #0366d6;
            --risk-high: #d73a49;
            --risk-medium: #b08800;
            --risk-low: #22863a;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 2rem;
        }

        main { max-width: 900px; margin: 0 auto; }
        h1 { font-size: 1.8rem; margin-bottom: 1rem; }
        h2 { font-size: 1.3rem; margin: 1.5rem 0 0.75rem; color: var(--accent); }
        p, ul, table, pre, blockquote { margin-bottom: 1rem; }
        ul { padding-left: 1.5rem; }
        blockquote { border-left: 4px solid var(--risk-medium); padding: 0.5rem 1rem; background: var(--bg-secondary); }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid var(--border-color); padding: 0.4rem 0.6rem; text-align: left; }
        pre { background: var(--bg-secondary); padding: 1rem; overflow-x: auto; font-family: var(--font-mono); font-size: 0.85rem; }
        .risk-high h2:first-of-type + ul { border-left: 4px solid var(--risk-high); }
        .risk-medium h2:first-of-type + ul { border-left: 4px solid var(--risk-medium); }
        .risk-low h2:first-of-type + ul { border-left: 4px solid var(--risk-low); }
        footer { max-width: 900px; margin: 2rem auto 0; color: var(--text-muted); font-size: 0.85rem; }
    </style>
`
