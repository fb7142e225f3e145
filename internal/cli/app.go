// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Runtime wiring shared by all commands.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/config"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/offline"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/storage"
	"github.com/jeranaias/redactor/internal/ui"
	"github.com/jeranaias/redactor/internal/workflow"
)

// Streams are the standard file handles a command uses.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns stdin, stdout and stderr.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// HistoryStore records and lists completed sessions. *storage.History
// implements it.
type HistoryStore interface {
	workflow.Recorder
	List(ctx context.Context, limit int) ([]storage.Record, error)
	Close() error
}

// App carries the configuration and dependencies of one CLI invocation.
type App struct {
	args   Args
	cfg    *config.Config
	logger logging.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// interactive allows prompts; fancy enables the live progress view and
	// rendered Markdown.
	interactive bool
	fancy       bool

	client   *ollama.Client
	connect  workflow.Connector
	remote   workflow.Remote
	remoteOK bool
	history  HistoryStore
	histOK   bool
	prompter Prompter
}

// NewApp applies the global flags to cfg and builds the App. cfg is
// modified in place.
func NewApp(args Args, cfg *config.Config, s Streams) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if args.Model != "" {
		cfg.Local.Model = args.Model
	}
	if args.OllamaURL != "" {
		cfg.Local.OllamaURL = args.OllamaURL
	}
	if args.LocalOnly {
		cfg.Session.LocalOnly = true
	}
	if args.OutDir != "" {
		cfg.Output.Dir = args.OutDir
	}
	offline.SetLocalOnly(cfg.Session.LocalOnly)

	level := cfg.Logging.Level
	if args.Verbose {
		level = logging.DebugLevel
	}
	logger := logging.New(&logging.Config{
		Level:      level,
		Output:     s.Err,
		JSON:       cfg.Logging.JSON || args.JSON,
		TimeFormat: "15:04:05",
	})
	logging.SetDefault(logger)

	return &App{
		args:        args,
		cfg:         cfg,
		logger:      logger,
		in:          s.In,
		out:         s.Out,
		errOut:      s.Err,
		interactive: !args.JSON && !args.Yes && IsTTY(),
		fancy:       !args.JSON && IsStderrTTY() && IsStdoutTTY(),
	}
}

// WithConnector replaces the local backend probe.
func (a *App) WithConnector(c workflow.Connector) *App {
	a.connect = c
	return a
}

// WithRemote replaces the remote analysis client. nil means not configured.
func (a *App) WithRemote(r workflow.Remote) *App {
	a.remote = r
	a.remoteOK = true
	return a
}

// WithHistory replaces the history store. nil disables history.
func (a *App) WithHistory(h HistoryStore) *App {
	a.history = h
	a.histOK = true
	return a
}

// WithPrompter makes the App interactive using p.
func (a *App) WithPrompter(p Prompter) *App {
	a.prompter = p
	a.interactive = p != nil
	return a
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Close releases the history database and the terminal.
func (a *App) Close() error {
	var err error
	if a.history != nil {
		err = a.history.Close()
		a.history = nil
	}
	if a.prompter != nil {
		if perr := a.prompter.Close(); err == nil {
			err = perr
		}
	}
	return err
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

func (a *App) ollamaClient() *ollama.Client {
	if a.client == nil {
		a.client = ollama.NewClient(a.cfg.OllamaConfig())
		if w := offline.BackendWarning(a.cfg.Local.OllamaURL); w != "" {
			a.logger.Warn(w)
		}
	}
	return a.client
}

func (a *App) connector() workflow.Connector {
	if a.connect != nil {
		return a.connect
	}
	return workflow.OllamaConnector(a.ollamaClient())
}

// remoteClient returns the remote analysis client, or nil when none is
// configured or local-only mode is on.
func (a *App) remoteClient() workflow.Remote {
	if a.remoteOK {
		return a.remote
	}
	a.remoteOK = true
	if a.cfg.Session.LocalOnly {
		return nil
	}
	c := cloud.NewClient(a.cfg.CloudConfig(), a.logger)
	if !c.IsConfigured() {
		return nil
	}
	a.remote = c
	return a.remote
}

// historyStore opens the history database on first use. Failures disable
// history with a warning; they never fail a command.
func (a *App) historyStore() HistoryStore {
	if a.histOK {
		return a.history
	}
	a.histOK = true
	if !a.cfg.Storage.HistoryEnabled {
		return nil
	}
	path := a.cfg.Storage.HistoryPath
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			a.logger.Warn("session history disabled", "error", err)
			return nil
		}
		path = p
	}
	h, err := storage.Open(path)
	if err != nil {
		a.logger.Warn("session history disabled", "error", err)
		return nil
	}
	a.history = h
	return h
}

// recorder adapts historyStore to the workflow's optional dependency,
// avoiding a typed nil interface.
func (a *App) recorder() workflow.Recorder {
	if h := a.historyStore(); h != nil {
		return h
	}
	return nil
}

func (a *App) prompt() Prompter {
	if a.prompter == nil {
		a.prompter = NewTerminalPrompter()
	}
	return a.prompter
}

func (a *App) newSession() *workflow.Session {
	return workflow.New(workflow.Config{
		Connect:             a.connector(),
		Remote:              a.remoteClient(),
		History:             a.recorder(),
		Sanitize:            a.cfg.SanitizeOptions(),
		DefaultJurisdiction: a.cfg.Session.DefaultJurisdiction,
		DefaultContext:      a.cfg.Session.DefaultContext,
		Logger:              a.logger,
	})
}

func (a *App) exportOptions() *export.Options {
	opts := export.DefaultOptions()
	opts.OutputDir = a.cfg.Output.Dir
	return opts
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printf writes human output. It is silent in --json mode.
func (a *App) printf(format string, args ...any) {
	if a.args.JSON {
		return
	}
	fmt.Fprintf(a.out, format, args...)
}

// field prints an aligned "label value" line.
func (a *App) field(label string, value any) {
	a.printf("  %s%v\n", RenderLabel(label), value)
}

// note prints a status line to stderr so stdout stays clean for pipes.
func (a *App) note(format string, args ...any) {
	if a.args.JSON {
		return
	}
	fmt.Fprintf(a.errOut, format+"\n", args...)
}

// withProgress runs work with a live progress view on a terminal, plain
// lines elsewhere, and nothing in --json mode.
func (a *App) withProgress(ctx context.Context, title string, work func(ctx context.Context, r ui.Reporter) error) error {
	switch {
	case a.args.JSON:
		return work(ctx, ui.Reporter{Progress: func(int, int) {}, Stage: func(string) {}})
	case a.fancy:
		return ui.RunWithProgress(ctx, title, a.errOut, work)
	default:
		fmt.Fprintln(a.errOut, title)
		return work(ctx, ui.PlainReporter(a.errOut))
	}
}

// emitJSON prints data in the --json envelope.
func (a *App) emitJSON(command string, data any) error {
	return NewJSONResponse(command, data).Print(a.out)
}
