// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// process_cmd.go - The full document workflow and its redact-only variant.
//
// process: screen -> confirm context -> local redaction + risk -> consent
// gate -> optional remote summary and leak audit -> artifacts.
// sanitize: the same without screening or remote analysis.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/redactor/internal/document"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/ui"
	"github.com/jeranaias/redactor/internal/workflow"
)

// consentQuestion is asked before anything leaves the machine.
const consentQuestion = "Send the SANITIZED text to the remote AI for a summary and leak audit?"

// =============================================================================
// PROCESS
// =============================================================================

// HandleProcess runs the complete workflow on one document.
func (a *App) HandleProcess(ctx context.Context) error {
	path := a.args.Arg(0)
	if path == "" {
		return ErrMissingArgument("file", "redactor process contract.pdf")
	}
	if err := a.checkJurisdictionFlag(); err != nil {
		return err
	}

	s := a.newSession()
	if err := s.LoadFile(path, document.MaxSize); err != nil {
		return err
	}
	doc := s.Document()

	if a.args.BoolFlag("skip-screen") {
		if err := s.SkipScreening(); err != nil {
			return err
		}
	} else if err := a.screenWithRetry(ctx, s); err != nil {
		return err
	}

	contextInput, jurisdictionID, err := a.chooseContext(s)
	if err != nil {
		return err
	}

	if err := a.runLocal(ctx, s, doc.Name, contextInput, jurisdictionID); err != nil {
		return err
	}
	a.printLocalResults(s.Snapshot())

	report, err := a.remoteStage(ctx, s)
	if err != nil {
		return err
	}

	files, err := a.writeArtifacts(s, report, true)
	if err != nil {
		return err
	}
	return a.finishProcess("process", s, report, files)
}

// screenWithRetry screens the document, offering a retry while the local
// backend is unreachable.
func (a *App) screenWithRetry(ctx context.Context, s *workflow.Session) error {
	for {
		a.note("Screening %s...", s.Document().Name)
		res, err := s.Screen(ctx)
		if err == nil {
			a.printScreening(res)
			return nil
		}
		if !a.offerRetry(err) {
			return err
		}
	}
}

// runLocal runs local redaction with progress, offering a retry when the
// backend drops out.
func (a *App) runLocal(ctx context.Context, s *workflow.Session, name, contextInput, jurisdictionID string) error {
	title := "Redacting " + name
	err := a.withProgress(ctx, title, func(ctx context.Context, r ui.Reporter) error {
		r.Stage("Redacting")
		return s.Confirm(ctx, contextInput, jurisdictionID, r.Progress)
	})
	for err != nil && a.offerRetry(err) {
		err = a.withProgress(ctx, title, func(ctx context.Context, r ui.Reporter) error {
			r.Stage("Redacting")
			return s.Retry(ctx, r.Progress)
		})
	}
	return err
}

// offerRetry asks whether to retry after the local backend failed. It is
// always false for other errors or without a terminal.
func (a *App) offerRetry(err error) bool {
	if !a.interactive || !(ollama.IsUnreachable(err) || errors.Is(err, screening.ErrBackendUnreachable)) {
		return false
	}
	a.note("%s %v", WarningStyle.Render("[WARN]"), err)
	a.note("%s", Hint(err))
	ok, perr := a.prompt().Confirm("Retry?")
	return perr == nil && ok
}

// chooseContext settles the context and jurisdiction: flags first, then
// an interactive prompt pre-filled with the screening suggestion, else the
// suggestion as is (empty strings keep it).
func (a *App) chooseContext(s *workflow.Session) (string, string, error) {
	contextInput, jurisdictionID := a.args.Context, a.args.Jurisdiction
	if !a.interactive || (contextInput != "" && jurisdictionID != "") {
		return contextInput, jurisdictionID, nil
	}

	snap := s.Snapshot()
	p := a.prompt()

	if contextInput == "" {
		a.printf("\n%s\n", SectionStyle.Render("Context presets"))
		for _, preset := range jurisdiction.Presets() {
			a.printf("  %-10s %s\n", preset.ID, DimStyle.Render(preset.Label))
		}
		answer, err := p.Ask("Context (preset id or description): ", snap.Context)
		if err != nil {
			return "", "", err
		}
		contextInput = answer
	}

	if jurisdictionID == "" {
		a.printf("\n%s\n", SectionStyle.Render("Jurisdictions"))
		for _, j := range jurisdiction.All() {
			a.printf("  %-10s %s\n", j.ID, DimStyle.Render(j.Label()))
		}
		for {
			answer, err := p.Ask("Jurisdiction id: ", snap.Jurisdiction.ID)
			if err != nil {
				return "", "", err
			}
			answer = strings.TrimSpace(answer)
			if _, ok := jurisdiction.Lookup(answer); ok || answer == "" {
				jurisdictionID = answer
				break
			}
			a.note("Unknown jurisdiction %q. Choose one of: %s", answer, strings.Join(jurisdiction.IDs(), ", "))
		}
	}
	return contextInput, jurisdictionID, nil
}

// remoteStage resolves the consent gate. Local-only mode, a missing API
// key, or no answer (non-interactive without --yes) all decline.
func (a *App) remoteStage(ctx context.Context, s *workflow.Session) (*export.Report, error) {
	switch {
	case a.cfg.Session.LocalOnly:
		a.note("Local-only mode: remote analysis skipped.")
		return s.Decline(ctx)
	case a.remoteClient() == nil:
		a.note("Remote API not configured: remote analysis skipped.")
		return s.Decline(ctx)
	case a.args.Yes:
	case a.interactive:
		ok, err := a.prompt().Confirm(consentQuestion)
		if err != nil && !errors.Is(err, ErrPromptAborted) {
			return nil, err
		}
		if !ok {
			return s.Decline(ctx)
		}
	default:
		a.note("No consent given (pass --yes to allow remote analysis): remote analysis skipped.")
		return s.Decline(ctx)
	}

	var report *export.Report
	err := a.withProgress(ctx, "Remote analysis", func(ctx context.Context, r ui.Reporter) error {
		s.OnChange(func(snap workflow.Snapshot) {
			switch snap.State {
			case workflow.StateProcessingCloud:
				r.Stage("Summarizing")
			case workflow.StateValidating:
				r.Stage("Auditing for leaks")
			}
		})
		defer s.OnChange(nil)

		var err error
		report, err = s.Consent(ctx)
		return err
	})
	return report, err
}

// writeArtifacts writes the sanitized document and key, plus the report
// when withReport is set. --no-write skips all of it.
func (a *App) writeArtifacts(s *workflow.Session, report *export.Report, withReport bool) (OutputFiles, error) {
	var files OutputFiles
	if a.args.BoolFlag("no-write") {
		return files, nil
	}
	doc := s.Document()
	opts := a.exportOptions()

	var err error
	if files.Sanitized, err = export.WriteSanitized(doc.Base(), doc.Ext, s.SanitizedText(), opts); err != nil {
		return files, fmt.Errorf("write sanitized document: %w", err)
	}
	if files.Key, err = export.WriteKey(doc.Base(), s.Key(), opts); err != nil {
		return files, fmt.Errorf("write redaction key: %w", err)
	}
	if withReport && report != nil {
		exporter, err := export.ForFormat(a.cfg.Output.ReportFormat, opts)
		if err != nil {
			return files, err
		}
		if files.Report, err = export.ExportToFile(report, exporter, opts); err != nil {
			return files, fmt.Errorf("write report: %w", err)
		}
	}
	return files, nil
}

// finishProcess prints the outcome of process or sanitize.
func (a *App) finishProcess(command string, s *workflow.Session, report *export.Report, files OutputFiles) error {
	snap := s.Snapshot()
	if a.args.JSON {
		data := ProcessData{Session: snap, Report: report, Files: files, Notes: snap.Notes}
		if files.Sanitized == "" {
			data.Sanitized = s.SanitizedText()
		}
		return a.emitJSON(command, data)
	}

	if files.Sanitized != "" {
		a.printf("\n%s\n", SectionStyle.Render("Files"))
		a.field("Sanitized", files.Sanitized)
		a.field("Redaction key", files.Key)
		if files.Report != "" {
			a.field("Report", files.Report)
		}
		a.printf("  %s\n", WarningStyle.Render("Keep the redaction key private: it holds the original values."))
	}

	if command == "sanitize" {
		if files.Sanitized == "" {
			a.printf("\n%s\n", highlightTags(s.SanitizedText()))
		}
		return nil
	}
	if report != nil {
		a.printf("\n%s\n", renderReport(report, a.fancy))
	}
	return nil
}

// =============================================================================
// SANITIZE
// =============================================================================

// HandleSanitize redacts a document locally without screening or remote
// analysis and writes the sanitized text and key.
func (a *App) HandleSanitize(ctx context.Context) error {
	path := a.args.Arg(0)
	if path == "" {
		return ErrMissingArgument("file", "redactor sanitize notes.txt")
	}
	if err := a.checkJurisdictionFlag(); err != nil {
		return err
	}

	s := a.newSession()
	if err := s.LoadFile(path, document.MaxSize); err != nil {
		return err
	}
	if err := s.SkipScreening(); err != nil {
		return err
	}
	if err := a.runLocal(ctx, s, s.Document().Name, a.args.Context, a.args.Jurisdiction); err != nil {
		return err
	}
	a.printLocalResults(s.Snapshot())

	report, err := s.Decline(ctx)
	if err != nil {
		return err
	}
	files, err := a.writeArtifacts(s, report, false)
	if err != nil {
		return err
	}
	return a.finishProcess("sanitize", s, report, files)
}

// =============================================================================
// DISPLAY
// =============================================================================

func (a *App) printScreening(res *screening.Result) {
	if res == nil {
		return
	}
	a.printf("\n%s\n", SectionStyle.Render("Screening"))
	a.field("Detected context", res.DetectedContext)
	a.field("Suggested law", res.Jurisdiction().Label())
	if len(res.Findings) > 0 {
		a.field("Findings", strings.Join(res.Findings, ", "))
	}
	if res.Explanation != "" {
		a.field("Why", res.Explanation)
	}
}

func (a *App) printLocalResults(snap workflow.Snapshot) {
	a.printf("\n%s\n", SectionStyle.Render("Local results"))
	a.field("Jurisdiction", snap.Jurisdiction.Label())
	if snap.Risk != nil {
		a.field("Risk", RiskBadge(snap.Risk.Level)+" "+snap.Risk.Reason)
		if snap.Risk.RegulatoryWarning != "" {
			a.field("Compliance", snap.Risk.RegulatoryWarning)
		}
	}
	st := snap.Stats
	a.field("Redacted items", st.PIICount)
	a.field("Length", fmt.Sprintf("%d -> %d chars", st.OriginalLength, st.RedactedLength))
	chunks := fmt.Sprintf("%d", st.Chunks)
	if st.FailedChunks > 0 {
		chunks += ErrorStyle.Render(fmt.Sprintf(" (%d failed)", st.FailedChunks))
	}
	a.field("Chunks", chunks)
	for _, n := range snap.Notes {
		a.printf("  %s %s\n", WarningStyle.Render("[WARN]"), n)
	}
}

// checkJurisdictionFlag rejects an unknown --jurisdiction before any work.
func (a *App) checkJurisdictionFlag() error {
	id := strings.TrimSpace(a.args.Jurisdiction)
	if id == "" {
		return nil
	}
	if _, ok := jurisdiction.Lookup(id); !ok {
		return NewValidationErrorWithExample("jurisdiction", id, "unknown jurisdiction id",
			"one of: "+strings.Join(jurisdiction.IDs(), ", "))
	}
	return nil
}
