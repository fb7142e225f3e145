// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers for
// redactor.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command flags
//   - App: Configuration and lazily built dependencies for one invocation
//   - Prompter: Interactive questions (context entry, remote consent)
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	app := cli.NewApp(args, cfg, cli.StdStreams())
//	defer app.Close()
//	switch cmd {
//	case cli.CmdProcess:
//	    err = app.HandleProcess(ctx)
//	// ... other commands
//	}
//
// # Commands Overview
//
// Workflow:
//   - process: screen, confirm context, redact, consent gate, remote analysis
//   - sanitize: local redaction only
//   - screen / risk: one-shot local analysis
//   - restore: put original values back using a redaction key
//
// Inspection and setup:
//   - probe, jurisdictions, key show, history, config, serve
//
// All commands support --json. In JSON mode stdout carries exactly one
// envelope and nothing prompts.
package cli
