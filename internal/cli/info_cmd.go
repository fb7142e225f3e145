// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// info_cmd.go - Read-only commands: probe, jurisdictions, key, history.

package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/offline"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// PROBE
// =============================================================================

// HandleProbe checks the local backend and reports which URL answered and
// whether the configured model is installed.
func (a *App) HandleProbe(ctx context.Context) error {
	client := a.ollamaClient()
	data := ProbeData{
		ConfiguredURL: a.cfg.Local.OllamaURL,
		Model:         client.Model(),
		Warning:       offline.BackendWarning(a.cfg.Local.OllamaURL),
		LocalOnly:     a.cfg.Session.LocalOnly,
		RemoteStatus:  a.remoteStatus(),
	}

	working, err := client.Probe(ctx)
	if err != nil {
		data.Error = err.Error()
		if a.args.JSON {
			// The envelope carries the error; the payload is for diagnostics.
			a.logger.Debug("probe failed", "url", data.ConfiguredURL, "error", err)
		} else {
			a.printf("%s %s\n", RenderStatus("fail"), "Ollama not reachable at "+data.ConfiguredURL)
		}
		return err
	}

	data.Connected = true
	data.URL = working.BaseURL
	data.FallbackUsed = working.BaseURL != client.Config().BaseURL
	client = client.WithConfig(working)

	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		data.Models = append(data.Models, m.Name)
	}
	if data.ModelAvailable, err = client.HasModel(ctx); err != nil {
		return err
	}

	if a.args.JSON {
		return a.emitJSON("probe", data)
	}

	a.printf("%s\n", TitleStyle.Render("Backend status"))
	a.printf("%s %s\n", RenderStatus("ok"), "Ollama reachable at "+data.URL)
	if data.FallbackUsed {
		a.printf("  %s\n", DimStyle.Render("(configured "+data.ConfiguredURL+" did not answer)"))
	}
	a.printf("%s %s\n", RenderStatus(modelStatus(data.ModelAvailable)), "Model "+data.Model)
	if !data.ModelAvailable {
		a.printf("  %s\n", DimStyle.Render("ollama pull "+data.Model))
	}
	if len(data.Models) > 0 {
		a.field("Installed", strings.Join(data.Models, ", "))
	}
	if data.Warning != "" {
		a.printf("%s %s\n", WarningStyle.Render("[WARN]"), data.Warning)
	}
	a.field("Mode", offline.StatusIndicator())
	a.field("Remote API", data.RemoteStatus)
	return nil
}

func modelStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}

// remoteStatus is "disabled" in local-only mode, otherwise whether an API
// key is set.
func (a *App) remoteStatus() string {
	switch {
	case a.cfg.Session.LocalOnly:
		return "disabled"
	case a.remoteClient() != nil:
		return "configured"
	default:
		return "not_configured"
	}
}

// =============================================================================
// JURISDICTIONS
// =============================================================================

// HandleJurisdictions lists the supported jurisdictions and context presets.
func (a *App) HandleJurisdictions() error {
	def := a.cfg.DefaultJurisdiction().ID
	if a.args.JSON {
		return a.emitJSON("jurisdictions", JurisdictionsData{
			Default:       def,
			Jurisdictions: jurisdiction.All(),
			Contexts:      jurisdiction.Presets(),
		})
	}

	a.printf("%s\n", TitleStyle.Render("Jurisdictions"))
	for _, j := range jurisdiction.All() {
		marker := "  "
		if j.ID == def {
			marker = SuccessStyle.Render("* ")
		}
		a.printf("%s%s %s  %s\n", marker, padRight(j.ID, 8), padRight(j.Name, 24),
			DimStyle.Render(util.TruncateWidth(j.Law, GetTerminalWidth()-38)))
	}

	a.printf("\n%s\n", TitleStyle.Render("Context presets"))
	for _, p := range jurisdiction.Presets() {
		a.printf("  %s %s\n", padRight(p.ID, 10), p.Label)
	}
	return nil
}

// padRight pads s with spaces to width terminal columns, truncating when
// it is wider.
func padRight(s string, width int) string {
	s = util.TruncateWidth(s, width)
	if w := util.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// =============================================================================
// KEY
// =============================================================================

// HandleKey inspects a redaction key file. Values are masked unless
// --reveal is given.
func (a *App) HandleKey() error {
	switch a.args.Subcommand {
	case "show":
	case "":
		return ErrMissingArgument("subcommand", "redactor key show redaction_key_notes.json")
	default:
		return fmt.Errorf("unknown key subcommand: %s (expected: show)", a.args.Subcommand)
	}
	path := a.args.Arg(1)
	if path == "" {
		return ErrMissingArgument("key file", "redactor key show redaction_key_notes.json")
	}

	m, err := redact.ReadKeyFile(path)
	if err != nil {
		return err
	}
	reveal := a.args.BoolFlag("reveal")

	tags := m.Keys()
	categories := make(map[string]int)
	for _, k := range tags {
		categories[redact.Tag(k).Category()]++
	}
	data := KeyData{File: path, Entries: len(m), Categories: categories, Tags: tags}
	if reveal {
		data.Values = m
	}

	if a.args.JSON {
		return a.emitJSON("key", data)
	}

	a.printf("%s\n", TitleStyle.Render("Redaction key"))
	a.field("File", path)
	a.field("Entries", len(m))

	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, c)
	}
	sort.Strings(names)
	a.printf("\n%s\n", SectionStyle.Render("Categories"))
	for _, c := range names {
		a.printf("  %s %d\n", padRight(c, 20), categories[c])
	}

	if reveal && a.fancy {
		raw, err := redact.ExportKey(m)
		if err != nil {
			return err
		}
		a.printf("\n%s\n", highlight(string(raw), "json"))
		return nil
	}

	a.printf("\n%s\n", SectionStyle.Render("Entries"))
	for _, k := range tags {
		value := DimStyle.Render(fmt.Sprintf("(%d chars)", util.RuneLen(m[k])))
		if reveal {
			value = m[k]
		}
		a.printf("  %s %s\n", TagStyle.Render(padRight(k, 24)), value)
	}
	if !reveal {
		a.printf("\n  %s\n", DimStyle.Render("Values hidden. Pass --reveal to show them."))
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// HandleHistory lists recent sessions, newest first. Only counts and
// verdicts are stored, never document text.
func (a *App) HandleHistory(ctx context.Context) error {
	limit := 20
	if v := a.args.Flag("limit"); v != "" {
		n, err := ParsePositiveInt(v, "limit")
		if err != nil {
			return err
		}
		limit = n
	}

	h := a.historyStore()
	if h == nil {
		return errors.New("session history is disabled (set storage.history_enabled = true)")
	}
	records, err := h.List(ctx, limit)
	if err != nil {
		return err
	}

	if a.args.JSON {
		return a.emitJSON("history", records)
	}
	if len(records) == 0 {
		a.printf("No sessions recorded yet.\n")
		return nil
	}

	a.printf("%s\n", TitleStyle.Render("Recent sessions"))
	a.printf("  %s %s %s %s %s %s %s\n",
		padRight("DATE", 16), padRight("FILE", 28), padRight("LAW", 8),
		padRight("RISK", 8), padRight("PII", 5), padRight("CHUNKS", 8), "REMOTE")
	for _, r := range records {
		chunks := fmt.Sprintf("%d", r.Chunks)
		if r.FailedChunks > 0 {
			chunks = fmt.Sprintf("%d/%d!", r.Chunks-r.FailedChunks, r.Chunks)
		}
		remote := "no"
		if r.RemoteUsed {
			remote = "yes"
			if r.AuditScore != nil {
				remote = fmt.Sprintf("yes (%d)", *r.AuditScore)
			}
		}
		a.printf("  %s %s %s %s %s %s %s\n",
			padRight(r.CreatedAt.Local().Format("2006-01-02 15:04"), 16),
			padRight(r.FileName, 28),
			padRight(r.Jurisdiction, 8),
			padRight(r.RiskLevel, 8),
			padRight(fmt.Sprintf("%d", r.PIICount), 5),
			padRight(chunks, 8),
			remote)
	}
	return nil
}
