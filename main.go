// redactor - local-first document redaction with reversible tags.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/redactor/internal/cli"
	"github.com/jeranaias/redactor/internal/config"
	"github.com/jeranaias/redactor/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	// Commands that need no configuration
	switch cmd {
	case cli.CmdHelp:
		return exit(args, cli.NewApp(args, nil, cli.StdStreams()).HandleHelp())
	case cli.CmdVersion:
		return exit(args, cli.NewApp(args, nil, cli.StdStreams()).HandleVersion())
	case cli.CmdUnknown:
		return exit(args, cli.UnknownCommand(args.Name))
	}

	cfg, loadErr := config.Load()
	if cfg == nil {
		return exit(args, loadErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(args, cfg, cli.StdStreams())
	defer app.Close()
	if loadErr != nil {
		logging.Default().Warn("config file ignored, using defaults", "error", loadErr)
	}

	var err error
	switch cmd {
	case cli.CmdProcess:
		err = app.HandleProcess(ctx)
	case cli.CmdSanitize:
		err = app.HandleSanitize(ctx)
	case cli.CmdScreen:
		err = app.HandleScreen(ctx)
	case cli.CmdRisk:
		err = app.HandleRisk(ctx)
	case cli.CmdRestore:
		err = app.HandleRestore(ctx)
	case cli.CmdProbe:
		err = app.HandleProbe(ctx)
	case cli.CmdJurisdictions:
		err = app.HandleJurisdictions()
	case cli.CmdKey:
		err = app.HandleKey()
	case cli.CmdHistory:
		err = app.HandleHistory(ctx)
	case cli.CmdServe:
		err = app.HandleServe(ctx)
	case cli.CmdConfig:
		err = app.HandleConfig()
	}
	return exit(args, err)
}

// exit reports err and returns the matching exit code. JSON errors go to
// stdout so scripts always get one envelope.
func exit(args cli.Args, err error) int {
	if err == nil {
		return cli.ExitSuccess
	}
	var w io.Writer = os.Stderr
	if args.JSON {
		w = os.Stdout
	}
	cli.DisplayError(w, args.Name, err, args.JSON)
	return cli.GetExitCode(err)
}
