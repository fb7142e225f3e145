// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and help text for redactor.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdProcess
	CmdSanitize
	CmdScreen
	CmdRisk
	CmdRestore
	CmdProbe
	CmdJurisdictions
	CmdKey
	CmdHistory
	CmdServe
	CmdConfig
	CmdVersion
	CmdUnknown
)

var commandNames = map[string]Command{
	"process":       CmdProcess,
	"run":           CmdProcess,
	"sanitize":      CmdSanitize,
	"redact":        CmdSanitize,
	"screen":        CmdScreen,
	"risk":          CmdRisk,
	"restore":       CmdRestore,
	"probe":         CmdProbe,
	"status":        CmdProbe,
	"jurisdictions": CmdJurisdictions,
	"laws":          CmdJurisdictions,
	"key":           CmdKey,
	"history":       CmdHistory,
	"serve":         CmdServe,
	"server":        CmdServe,
	"config":        CmdConfig,
	"version":       CmdVersion,
	"help":          CmdHelp,
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON         bool
	Verbose      bool
	LocalOnly    bool
	Yes          bool
	Model        string
	OllamaURL    string
	Jurisdiction string
	Context      string
	OutDir       string

	// Name is the command word as typed.
	Name string

	// Subcommand is the first argument after the command (e.g. "show").
	Subcommand string

	// Positional holds the arguments after the command word.
	Positional []string

	parser *ArgParser
}

// Arg returns the positional argument at index (0 is the first after the command).
func (a Args) Arg(index int) string {
	if index < 0 || index >= len(a.Positional) {
		return ""
	}
	return a.Positional[index]
}

// Flag returns a command-specific string flag.
func (a Args) Flag(name string) string {
	if a.parser == nil {
		return ""
	}
	return a.parser.Flag(name)
}

// BoolFlag returns a command-specific boolean flag.
func (a Args) BoolFlag(name string) bool {
	if a.parser == nil {
		return false
	}
	return a.parser.BoolFlag(name)
}

const usageText = `redactor - local-first document redaction

Redactor replaces personal data in documents with reversible tags using a
local Ollama model. Nothing leaves the machine unless you explicitly agree
to a remote summary and leak audit of the already-sanitized text.

Usage:
  redactor process <file>          Screen, redact, assess risk, optional remote audit
  redactor sanitize <file>         Redact only; writes sanitized text and key
  redactor screen <file>           Suggest context and jurisdiction
  redactor risk <file>             Local privacy risk assessment
  redactor restore <file> --key <key.json>
                                   Put original values back into sanitized text
  redactor probe                   Check the local Ollama backend
  redactor jurisdictions           List jurisdictions and context presets
  redactor key show <key.json>     Inspect a redaction key
  redactor history [--limit N]     Recent sessions (metadata only)
  redactor serve [--addr host:port]
                                   Start the HTTP API
  redactor config [show|init|get|set|path]
  redactor version
  redactor help

Global flags:
  --json                 Machine-readable output
  -v, --verbose          Debug logging
  --local-only           Never contact the remote API
  --model <name>         Local model (default from config)
  --ollama-url <url>     Local backend URL
  --jurisdiction <id>    Jurisdiction id, e.g. eu, us, uk, global
  --context <text>       Context preset (medical, legal, sales, tech, general) or free text
  -y, --yes              Accept defaults and consent without prompting
  --out <dir>            Output directory for written files

Command flags:
  process   --skip-screen  --no-write
  sanitize  --no-write
  risk      --pdf
  restore   --key <key.json>  --output <path>
  key show  --reveal
  history   --limit <n>

Supported documents: .txt .md .csv .json .pdf (max 5 MB)

Config file: ~/.redactor/config.toml

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv)
	args := Args{
		JSON:         p.BoolFlag("json"),
		Verbose:      p.BoolFlag("verbose") || p.BoolFlag("v"),
		LocalOnly:    p.BoolFlag("local-only") || p.BoolFlag("offline"),
		Yes:          p.BoolFlag("yes") || p.BoolFlag("y"),
		Model:        p.Flag("model"),
		OllamaURL:    p.Flag("ollama-url"),
		Jurisdiction: p.Flag("jurisdiction"),
		Context:      p.Flag("context"),
		OutDir:       p.Flag("out"),
		parser:       p,
	}

	if p.PositionalCount() == 0 {
		if p.BoolFlag("version") {
			return CmdVersion, args
		}
		return CmdHelp, args
	}

	args.Name = strings.ToLower(p.Positional(0))
	args.Positional = p.PositionalFrom(1)
	args.Subcommand = args.Arg(0)

	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, args
	}

	cmd, ok := commandNames[args.Name]
	if !ok {
		return CmdUnknown, args
	}
	return cmd, args
}

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion prints version information.
func (a *App) HandleVersion() error {
	if a.args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print(a.out)
	}
	fmt.Fprintf(a.out, "redactor version %s\n", Version)
	fmt.Fprintf(a.out, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(a.out, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(a.out, "  Go:         %s\n", runtime.Version())
	return nil
}

// HandleHelp prints usage.
func (a *App) HandleHelp() error {
	PrintUsage(a.out)
	return nil
}

// UnknownCommand builds the error for an unrecognized command word.
func UnknownCommand(name string) error {
	return NewValidationErrorWithExample("command", name, "unknown command", "redactor help")
}
