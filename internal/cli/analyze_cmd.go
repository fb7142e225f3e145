// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// analyze_cmd.go - One-shot screen, risk and restore commands.

package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jeranaias/redactor/internal/document"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// SCREEN
// =============================================================================

// HandleScreen suggests a context and jurisdiction for a document.
func (a *App) HandleScreen(ctx context.Context) error {
	path := a.args.Arg(0)
	if path == "" {
		return ErrMissingArgument("file", "redactor screen intake_form.txt")
	}
	doc, err := document.LoadFile(path, document.MaxSize)
	if err != nil {
		return err
	}

	gen, err := a.connector()(ctx)
	if err != nil {
		return err
	}
	a.note("Screening %s...", doc.Name)
	res, err := screening.New(gen, a.logger).Screen(ctx, doc.Text)
	if err != nil {
		return err
	}

	if a.args.JSON {
		return a.emitJSON("screen", ScreenData{File: doc.Name, Screening: res, Jurisdiction: res.Jurisdiction()})
	}
	a.printScreening(res)
	a.printf("\n  %s\n", DimStyle.Render("Next: redactor process "+path+" --jurisdiction "+res.Jurisdiction().ID))
	return nil
}

// =============================================================================
// RISK
// =============================================================================

// HandleRisk runs the local privacy risk assessment. --pdf also writes the
// assessment as analysis_<base>.pdf.
func (a *App) HandleRisk(ctx context.Context) error {
	path := a.args.Arg(0)
	if path == "" {
		return ErrMissingArgument("file", "redactor risk payroll.csv --jurisdiction us")
	}
	if err := a.checkJurisdictionFlag(); err != nil {
		return err
	}
	j := a.cfg.DefaultJurisdiction()
	if a.args.Jurisdiction != "" {
		j = jurisdiction.Resolve(a.args.Jurisdiction)
	}

	doc, err := document.LoadFile(path, document.MaxSize)
	if err != nil {
		return err
	}
	gen, err := a.connector()(ctx)
	if err != nil {
		return err
	}

	a.note("Assessing %s under %s...", doc.Name, j.Law)
	risk := screening.New(gen, a.logger).AssessRisk(ctx, doc.Text, j)
	if err := ctx.Err(); err != nil {
		return err
	}

	data := RiskData{File: doc.Name, Jurisdiction: j.ID, Risk: risk, Failed: risk.Failed}
	if a.args.BoolFlag("pdf") {
		pdf, err := export.RenderPDF(export.RiskText(risk))
		if err != nil {
			return err
		}
		out := filepath.Join(a.exportOptions().OutputDir, export.ReportFileName(doc.Base(), ".pdf"))
		if err := util.AtomicWriteFileWithDir(out, pdf, 0o644, 0o755); err != nil {
			return err
		}
		data.Report = out
	}

	if a.args.JSON {
		return a.emitJSON("risk", data)
	}
	a.printf("\n%s\n", SectionStyle.Render("Privacy risk"))
	a.field("Jurisdiction", j.Label())
	a.field("Level", RiskBadge(risk.Level))
	a.field("Reason", risk.Reason)
	if risk.RegulatoryWarning != "" {
		a.field("Compliance", risk.RegulatoryWarning)
	}
	if risk.Failed {
		a.printf("  %s %s\n", WarningStyle.Render("[WARN]"), "The model gave no usable verdict; the level is a fallback.")
	}
	if data.Report != "" {
		a.field("Report", data.Report)
	}
	return nil
}

// =============================================================================
// RESTORE
// =============================================================================

// HandleRestore puts original values back into a sanitized file using a
// redaction key. The output holds personal data again, so it is written
// owner-only. --output - prints to stdout.
func (a *App) HandleRestore(ctx context.Context) error {
	path := a.args.Arg(0)
	keyPath := a.args.Flag("key")
	if path == "" || keyPath == "" {
		return ErrMissingArgument("file and --key", "redactor restore sanitized_notes.txt --key redaction_key_notes.json")
	}

	doc, err := document.LoadFile(path, document.MaxSize)
	if err != nil {
		return err
	}
	m, err := redact.ReadKeyFile(keyPath)
	if err != nil {
		return err
	}

	restored, applied := redact.Restore(doc.Text, m)
	data := RestoreData{
		File:          doc.Name,
		Applied:       applied,
		RemainingTags: redact.Count(restored),
		UnknownTags:   redact.Missing(restored, m),
	}

	out := a.args.Flag("output")
	if out == "" {
		base := strings.TrimPrefix(doc.Base(), "sanitized_")
		out = filepath.Join(a.exportOptions().OutputDir, "restored_"+base+doc.Ext)
	}
	if out != "-" {
		if err := util.AtomicWriteFileWithDir(out, []byte(restored), 0o600, 0o700); err != nil {
			return err
		}
		data.Output = out
	}

	if a.args.JSON {
		return a.emitJSON("restore", data)
	}
	if out == "-" {
		a.printf("%s", restored)
		return nil
	}
	a.printf("\n%s\n", SectionStyle.Render("Restore"))
	a.field("Tags restored", applied)
	a.field("Written to", out)
	if data.RemainingTags > 0 {
		a.printf("  %s %d tags have no entry in this key: %s\n",
			WarningStyle.Render("[WARN]"), len(data.UnknownTags), strings.Join(data.UnknownTags, " "))
	}
	return nil
}
