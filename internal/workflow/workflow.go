// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/document"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/sanitize"
	"github.com/jeranaias/redactor/internal/screening"
	"github.com/jeranaias/redactor/internal/storage"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Generator is the local model. *ollama.Client implements it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, opts *ollama.Options) (string, error)
}

// Connector probes the local backend and returns a generator bound to the
// address that answered. It is called before every local stage.
type Connector func(ctx context.Context) (Generator, error)

// OllamaConnector probes client (with its loopback fallback) and returns a
// copy configured for the reachable URL. client itself is not modified.
func OllamaConnector(client *ollama.Client) Connector {
	return func(ctx context.Context) (Generator, error) {
		cfg, err := client.Probe(ctx)
		if err != nil {
			return nil, err
		}
		return client.WithConfig(cfg), nil
	}
}

// Remote is the remote analysis capability. *cloud.Client implements it.
type Remote interface {
	Summarize(ctx context.Context, sanitized string) (string, error)
	Audit(ctx context.Context, original, sanitized string) (*cloud.AuditResult, error)
}

// Recorder stores completed sessions. *storage.History implements it.
type Recorder interface {
	Record(ctx context.Context, rec storage.Record) (storage.Record, error)
}

// Config wires a Session.
type Config struct {
	// Connect reaches the local backend (required)
	Connect Connector

	// Remote runs summary and audit; nil makes both fail with cloud.ErrNotConfigured
	Remote Remote

	// History records completed sessions; nil disables recording
	History Recorder

	Sanitize            sanitize.Options
	DefaultJurisdiction string
	DefaultContext      string

	Logger logging.Logger
}

// degradedNote is added when chunks fell back to original text.
const degradedNote = "Privacy degraded: %d of %d chunks could not be redacted and contain original text."

// =============================================================================
// SESSION
// =============================================================================

// Session drives one document at a time through screening, local
// redaction, the consent gate and remote analysis.
//
// Operations block until their stage finishes and are meant to be called
// from one controlling goroutine; Snapshot, Reset and OnChange may be
// called from anywhere. Reset cancels the running stage and bumps the
// generation, so a stage that finishes afterwards returns ErrStaleSession
// and leaves the new session untouched.
type Session struct {
	cfg    Config
	logger logging.Logger

	mu      sync.Mutex
	id      string
	gen     uint64
	state   State
	running bool
	cancel  context.CancelFunc

	connErr bool
	err     error
	retry   State // stage Retry reruns

	doc        *document.Document
	screen     *screening.Result
	docContext string
	jur        jurisdiction.Jurisdiction
	progress   Progress

	sanitized string
	key       redact.Map
	chunks    int
	failures  []sanitize.ChunkFailure
	risk      *screening.Risk
	notes     []string

	remoteSkipped bool
	summary       string
	summaryErr    error
	audit         *cloud.AuditResult
	auditErr      error
	completedAt   time.Time

	observer func(Snapshot)
}

// New creates an idle Session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DefaultContext == "" {
		cfg.DefaultContext = jurisdiction.DefaultContext
	}
	s := &Session{cfg: cfg, logger: cfg.Logger}
	s.resetLocked()
	return s
}

// OnChange registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change, outside the session lock.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset cancels any running stage and clears everything back to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)
}

// resetLocked clears session data, cancels the running stage and starts
// a new generation. Must be called with the lock held.
func (s *Session) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.id = uuid.NewString()
	s.state = StateIdle
	s.running = false
	s.connErr = false
	s.err = nil
	s.retry = ""

	s.doc = nil
	s.screen = nil
	s.docContext = s.cfg.DefaultContext
	s.jur = jurisdiction.Resolve(s.cfg.DefaultJurisdiction)
	s.progress = Progress{}

	s.sanitized = ""
	s.key = nil
	s.chunks = 0
	s.failures = nil
	s.risk = nil
	s.notes = nil

	s.remoteSkipped = false
	s.summary = ""
	s.summaryErr = nil
	s.audit = nil
	s.auditErr = nil
	s.completedAt = time.Time{}
}

// =============================================================================
// STAGE BOOKKEEPING
// =============================================================================

// begin moves into to, provided the current state is one of from and no
// stage is running. capture runs under the same lock, before the
// transition, so the stage reads its inputs from the generation it
// started in. It returns the generation and a context that Reset cancels.
func (s *Session) begin(ctx context.Context, to State, from []State, capture func() error) (context.Context, uint64, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, 0, fmt.Errorf("%w: %s is still running", ErrInvalidTransition, s.state)
	}
	allowed := false
	for _, f := range from {
		if s.state == f {
			allowed = true
			break
		}
	}
	if !allowed || !CanTransition(s.state, to) {
		state := s.state
		s.mu.Unlock()
		return nil, 0, fmt.Errorf("%w: cannot enter %s from %s", ErrInvalidTransition, to, state)
	}
	if err := capture(); err != nil {
		s.mu.Unlock()
		return nil, 0, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.state = to
	s.connErr = false
	s.err = nil
	gen := s.gen
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()

	s.emit(obs, snap)
	return ctx, gen, nil
}

// update applies fn if gen is still current and notifies the observer.
func (s *Session) update(gen uint64, fn func()) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStaleSession
	}
	fn()
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)
	return nil
}

// current reports whether gen is still the live generation.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// finish is update that also ends the running stage.
func (s *Session) finish(gen uint64, fn func()) error {
	return s.update(gen, func() {
		fn()
		s.running = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	})
}

// fail ends the running stage in Error; Retry reruns stage.
func (s *Session) fail(gen uint64, stage State, err error) error {
	if uerr := s.finish(gen, func() {
		s.state = StateError
		s.err = err
		s.retry = stage
	}); uerr != nil {
		return uerr
	}
	s.logger.Warn("workflow stage failed", "stage", stage, "error", err)
	return err
}

func (s *Session) emit(obs func(Snapshot), snap Snapshot) {
	if obs != nil {
		obs(snap)
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load starts a new session for doc. Any previous session is discarded.
// An empty document moves straight to Error with nothing to retry.
func (s *Session) Load(doc *document.Document) error {
	s.mu.Lock()
	s.resetLocked()
	s.state = StateReadingFile
	gen := s.gen
	s.running = true
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)

	return s.accept(gen, doc, nil)
}

// LoadFile starts a new session from a file on disk.
func (s *Session) LoadFile(path string, maxSize int64) error {
	s.mu.Lock()
	s.resetLocked()
	s.state = StateReadingFile
	gen := s.gen
	s.running = true
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)

	doc, err := document.LoadFile(path, maxSize)
	return s.accept(gen, doc, err)
}

func (s *Session) accept(gen uint64, doc *document.Document, err error) error {
	if err == nil && (doc == nil || strings.TrimSpace(doc.Text) == "") {
		err = document.ErrEmpty
	}
	if err != nil {
		return s.fail(gen, "", err)
	}
	if uerr := s.finish(gen, func() { s.doc = doc }); uerr != nil {
		return uerr
	}
	s.logger.Info("document loaded", "file", doc.Name, "kind", doc.Kind, "size", doc.Size)
	return nil
}

// Document returns the loaded document, or nil.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// =============================================================================
// SCREENING
// =============================================================================

// Screen classifies a sample of the document and suggests a jurisdiction.
//
// When the local backend cannot be reached the session stays in Screening
// with ConnectionError set and the error wraps screening.ErrBackendUnreachable;
// call Screen again to retry. Any other screening failure is advisory: the
// session moves on to AwaitingContext with the configured defaults and the
// returned result explains what happened.
func (s *Session) Screen(ctx context.Context) (*screening.Result, error) {
	s.mu.Lock()
	from := []State{StateReadingFile}
	switch {
	case s.state == StateScreening && s.connErr:
		from = append(from, StateScreening)
	case s.state == StateError && s.retry == StateScreening && s.doc != nil:
		from = append(from, StateError)
	}
	s.mu.Unlock()

	var text string
	ctx, gen, err := s.begin(ctx, StateScreening, from, func() error {
		if s.doc == nil {
			return ErrNoDocument
		}
		text = s.doc.Text
		return nil
	})
	if err != nil {
		return nil, err
	}

	backend, err := s.cfg.Connect(ctx)
	if err != nil {
		return nil, s.connectionLost(gen, err)
	}

	res, err := screening.New(backend, s.logger).Screen(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, screening.ErrBackendUnreachable):
		return nil, s.connectionLost(gen, err)
	case ctx.Err() != nil:
		return nil, s.fail(gen, StateScreening, ctx.Err())
	default:
		res = &screening.Result{
			DetectedContext:         s.cfg.DefaultContext,
			SuggestedJurisdictionID: s.cfg.DefaultJurisdiction,
			Explanation:             fmt.Sprintf("Automatic screening was unavailable (%v). Defaults were applied.", err),
		}
		s.logger.Warn("screening failed, using defaults", "error", err)
	}

	if err := s.finish(gen, func() {
		s.state = StateAwaitingContext
		s.screen = res
		s.jur = res.Jurisdiction()
		if c := strings.TrimSpace(res.DetectedContext); c != "" {
			s.docContext = c
		}
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// connectionLost parks the session in the Screening connection-error sub-state.
func (s *Session) connectionLost(gen uint64, err error) error {
	if !errors.Is(err, screening.ErrBackendUnreachable) {
		err = fmt.Errorf("%w: %v", screening.ErrBackendUnreachable, err)
	}
	if uerr := s.finish(gen, func() {
		s.state = StateScreening
		s.connErr = true
		s.err = err
	}); uerr != nil {
		return uerr
	}
	s.logger.Warn("local backend unreachable during screening", "error", err)
	return err
}

// SkipScreening moves a freshly loaded document to AwaitingContext with
// the configured defaults, without calling the backend.
func (s *Session) SkipScreening() error {
	s.mu.Lock()
	ok := !s.running && (s.state == StateReadingFile || (s.state == StateScreening && s.connErr))
	if !ok {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot skip screening from %s", ErrInvalidTransition, state)
	}
	s.state = StateAwaitingContext
	s.connErr = false
	s.err = nil
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)
	return nil
}

// =============================================================================
// LOCAL PROCESSING
// =============================================================================

// Confirm fixes the context and jurisdiction and runs chunked redaction of
// the full document alongside a risk assessment of its leading sample.
// Empty arguments keep the screening suggestion. contextInput may be a
// preset id. progress, if non-nil, receives (current, total) per chunk.
//
// On success the session waits at AwaitingCloudConsent; nothing is sent
// anywhere until Consent. An unreachable backend moves the session to
// Error, from which Retry reruns this stage with the same choices.
func (s *Session) Confirm(ctx context.Context, contextInput, jurisdictionID string, progress sanitize.ProgressFunc) error {
	s.mu.Lock()
	if contextInput = strings.TrimSpace(contextInput); contextInput != "" {
		if !s.running && s.state == StateAwaitingContext {
			s.docContext = contextInput
		}
	}
	if jurisdictionID = strings.TrimSpace(jurisdictionID); jurisdictionID != "" {
		if !s.running && s.state == StateAwaitingContext {
			s.jur = jurisdiction.Resolve(jurisdictionID)
		}
	}
	s.mu.Unlock()

	return s.processLocal(ctx, progress, StateAwaitingContext)
}

func (s *Session) processLocal(ctx context.Context, progress sanitize.ProgressFunc, from State) error {
	var req sanitize.Request
	ctx, gen, err := s.begin(ctx, StateProcessingLocal, []State{from}, func() error {
		if s.doc == nil {
			return ErrNoDocument
		}
		req = sanitize.Request{
			Text:         s.doc.Text,
			Context:      jurisdiction.ResolveContext(s.docContext),
			Jurisdiction: s.jur,
		}
		return nil
	})
	if err != nil {
		return err
	}

	backend, err := s.cfg.Connect(ctx)
	if err != nil {
		return s.fail(gen, StateProcessingLocal, fmt.Errorf("%w: %v", screening.ErrBackendUnreachable, err))
	}

	track := func(current, total int) {
		if err := s.update(gen, func() { s.progress = Progress{Current: current, Total: total} }); err != nil {
			return
		}
		if progress != nil {
			progress(current, total)
		}
	}

	var (
		result *sanitize.Result
		risk   screening.Risk
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := sanitize.New(backend, s.cfg.Sanitize, s.logger).Sanitize(gctx, req, track)
		result = r
		return err
	})
	g.Go(func() error {
		risk = screening.New(backend, s.logger).AssessRisk(gctx, req.Text, req.Jurisdiction)
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.fail(gen, StateProcessingLocal, err)
	}

	if err := s.finish(gen, func() {
		s.state = StateAwaitingCloudConsent
		s.sanitized = result.Text
		s.key = result.Map
		s.chunks = result.Chunks
		s.failures = result.Failures
		s.risk = &risk
		if result.Degraded() {
			s.notes = append(s.notes, fmt.Sprintf(degradedNote, len(result.Failures), result.Chunks))
		}
		for _, c := range result.Collisions {
			s.notes = append(s.notes, fmt.Sprintf("Tag %s was reused by a later chunk; the first value was kept.", c.Tag))
		}
	}); err != nil {
		return err
	}

	s.logger.Info("local redaction complete",
		"chunks", result.Chunks, "failed", len(result.Failures), "tags", len(result.Map), "risk", risk.Level)
	return nil
}

// Retry reruns the stage that failed, using the document and choices
// already in the session.
func (s *Session) Retry(ctx context.Context, progress sanitize.ProgressFunc) error {
	snap := s.Snapshot()
	switch {
	case snap.State == StateScreening && snap.ConnectionError:
		_, err := s.Screen(ctx)
		return err
	case snap.State != StateError:
		return fmt.Errorf("%w: nothing to retry in %s", ErrInvalidTransition, snap.State)
	case !snap.CanRetry:
		return ErrNoDocument
	}

	s.mu.Lock()
	stage := s.retry
	s.mu.Unlock()

	switch stage {
	case StateScreening:
		_, err := s.Screen(ctx)
		return err
	case StateProcessingLocal:
		return s.processLocal(ctx, progress, StateError)
	default:
		return fmt.Errorf("%w: stage %s cannot be retried", ErrInvalidTransition, stage)
	}
}

// =============================================================================
// CONSENT GATE
// =============================================================================

// Decline completes the session with local results only.
func (s *Session) Decline(ctx context.Context) (*export.Report, error) {
	s.mu.Lock()
	if s.running || s.state != StateAwaitingCloudConsent {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot decline from %s", ErrInvalidTransition, state)
	}
	s.state = StateCompleted
	s.remoteSkipped = true
	s.completedAt = time.Now()
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()
	s.emit(obs, snap)

	s.logger.Info("remote analysis declined")
	return s.complete(ctx)
}

// Consent sends the sanitized text for a summary, then original and
// sanitized samples for the leak audit. Remote failures are recorded in
// the report and never undo local results; the session always ends in
// Completed unless it was reset meanwhile.
func (s *Session) Consent(ctx context.Context) (*export.Report, error) {
	var original, sanitized string
	ctx, gen, err := s.begin(ctx, StateProcessingCloud, []State{StateAwaitingCloudConsent}, func() error {
		if s.doc == nil {
			return ErrNoDocument
		}
		original, sanitized = s.doc.Text, s.sanitized
		return nil
	})
	if err != nil {
		return nil, err
	}

	remote := s.cfg.Remote
	if remote == nil {
		if err := s.finish(gen, func() {
			s.state = StateCompleted
			s.summaryErr = cloud.ErrNotConfigured
			s.auditErr = cloud.ErrNotConfigured
			s.completedAt = time.Now()
		}); err != nil {
			return nil, err
		}
		return s.complete(ctx)
	}

	// Nothing leaves the machine for a session that was reset meanwhile.
	if !s.current(gen) {
		return nil, ErrStaleSession
	}
	summary, sumErr := remote.Summarize(ctx, sanitized)
	if sumErr != nil {
		s.logger.Warn("remote summary failed", "error", sumErr)
	}
	if err := s.update(gen, func() {
		s.state = StateValidating
		s.summary = summary
		s.summaryErr = sumErr
	}); err != nil {
		return nil, err
	}

	if !s.current(gen) {
		return nil, ErrStaleSession
	}
	audit, auditErr := remote.Audit(ctx, original, sanitized)
	if auditErr != nil {
		s.logger.Warn("leak audit failed", "error", auditErr)
	}
	if err := s.finish(gen, func() {
		s.state = StateCompleted
		s.audit = audit
		s.auditErr = auditErr
		s.completedAt = time.Now()
	}); err != nil {
		return nil, err
	}
	return s.complete(ctx)
}

// complete builds the final report and records the session.
func (s *Session) complete(ctx context.Context) (*export.Report, error) {
	report, err := s.Report()
	if err != nil {
		return nil, err
	}
	if s.cfg.History != nil {
		rec := storage.Record{
			ID:             report.SessionID,
			FileName:       report.FileName,
			Jurisdiction:   s.Snapshot().Jurisdiction.ID,
			RiskLevel:      string(report.Risk.Level),
			OriginalLength: report.Stats.OriginalLength,
			RedactedLength: report.Stats.RedactedLength,
			PIICount:       report.Stats.PIICount,
			Chunks:         report.Stats.Chunks,
			FailedChunks:   report.Stats.FailedChunks,
			RemoteUsed:     !report.RemoteSkipped,
			CreatedAt:      report.CreatedAt,
		}
		if report.Audit != nil {
			score := report.Audit.Score
			rec.AuditScore = &score
		}
		if _, err := s.cfg.History.Record(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn("could not record session history", "error", err)
		}
	}
	return report, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Report returns the final report. It is available once the session is
// Completed; while waiting at the consent gate it returns ErrConsentRequired.
func (s *Session) Report() (*export.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCompleted:
		return s.reportLocked(), nil
	case StateAwaitingCloudConsent:
		return nil, ErrConsentRequired
	default:
		return nil, fmt.Errorf("%w: no report in %s", ErrInvalidTransition, s.state)
	}
}

// RiskReport returns the local-only report (risk and stats) once local
// processing has finished, without any remote section.
func (s *Session) RiskReport() (*export.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.risk == nil {
		return nil, fmt.Errorf("%w: local processing has not finished", ErrInvalidTransition)
	}
	r := s.reportLocked()
	r.RemoteSkipped = false
	r.Summary, r.SummaryError = "", ""
	r.Audit, r.AuditError = nil, ""
	return r, nil
}

func (s *Session) reportLocked() *export.Report {
	r := &export.Report{
		SessionID:     s.id,
		CreatedAt:     s.completedAt,
		Jurisdiction:  s.jur.Label(),
		Context:       s.docContext,
		Stats:         s.statsLocked(),
		RemoteSkipped: s.remoteSkipped,
		Summary:       s.summary,
		Audit:         s.audit,
		Sanitized:     s.sanitized,
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if s.doc != nil {
		r.FileName = s.doc.Name
	}
	if s.risk != nil {
		r.Risk = *s.risk
	}
	if s.summaryErr != nil {
		r.SummaryError = s.summaryErr.Error()
	}
	if s.auditErr != nil {
		r.AuditError = s.auditErr.Error()
	}
	return r
}

// Stats returns the length and tag counts of the current texts.
func (s *Session) Stats() export.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() export.Stats {
	st := export.Stats{Chunks: s.chunks, FailedChunks: len(s.failures)}
	if s.doc != nil {
		st.OriginalLength = util.RuneLen(s.doc.Text)
	}
	if s.risk != nil {
		st.RedactedLength = util.RuneLen(s.sanitized)
		st.PIICount = redact.Count(s.sanitized)
	}
	return st
}

// SanitizedText returns the current sanitized text.
func (s *Session) SanitizedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sanitized
}

// Key returns a copy of the redaction map.
func (s *Session) Key() redact.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key.Clone()
}

// RestoreKey applies an exported redaction key to the sanitized text of
// a completed session and returns how many distinct tags were replaced.
// A malformed key returns an error wrapping redact.ErrInvalidKey and
// changes nothing.
func (s *Session) RestoreKey(data []byte) (int, error) {
	m, err := redact.ImportKey(data)
	if err != nil {
		return 0, err
	}
	return s.applyKey(m)
}

// RestoreKeyFile reads a key file and applies it like RestoreKey.
func (s *Session) RestoreKeyFile(path string) (int, error) {
	m, err := redact.ReadKeyFile(path)
	if err != nil {
		return 0, err
	}
	return s.applyKey(m)
}

func (s *Session) applyKey(m redact.Map) (int, error) {
	s.mu.Lock()
	if s.state != StateCompleted {
		state := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: restore is only available after completion, not in %s", ErrInvalidTransition, state)
	}
	restored, applied := redact.Restore(s.sanitized, m)
	s.sanitized = restored
	snap, obs := s.snapshotLocked(), s.observer
	s.mu.Unlock()

	s.emit(obs, snap)
	s.logger.Info("redaction key applied", "tags", len(m), "applied", applied)
	return applied, nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:       s.id,
		Generation:      s.gen,
		State:           s.state,
		ConnectionError: s.connErr,
		Context:         s.docContext,
		Jurisdiction:    s.jur,
		Progress:        s.progress,
		Stats:           s.statsLocked(),
		RemoteSkipped:   s.remoteSkipped,
		Summary:         s.summary,
		Audit:           s.audit,
		CompletedAt:     s.completedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	snap.CanRetry = s.state == StateError && s.doc != nil && s.retry != ""
	if s.doc != nil {
		snap.FileName = s.doc.Name
	}
	if s.screen != nil {
		res := *s.screen
		res.Findings = append([]string(nil), s.screen.Findings...)
		snap.Screening = &res
	}
	if s.risk != nil {
		risk := *s.risk
		snap.Risk = &risk
	}
	if len(s.failures) > 0 {
		snap.FailedChunks = make([]int, len(s.failures))
		for i, f := range s.failures {
			snap.FailedChunks[i] = f.Index
		}
	}
	snap.Notes = append([]string(nil), s.notes...)
	if s.summaryErr != nil {
		snap.SummaryError = s.summaryErr.Error()
	}
	if s.auditErr != nil {
		snap.AuditError = s.auditErr.Error()
	}
	return snap
}
