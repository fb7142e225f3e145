// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   init [--force]      Write a default config.toml
//   get <key>           Print one value (secrets masked unless --reveal)
//   set <key> <value>   Set a value in config.toml
//   path                Show the configuration file path
//
// Examples:
//   redactor config set local.model llama3.1
//   redactor config set session.default_jurisdiction eu
//   redactor config set remote.api_key sk-xxx
//   redactor config get local.ollama_url
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/redactor/internal/config"
)

// HandleConfig handles the "config" command.
func (a *App) HandleConfig() error {
	switch a.args.Subcommand {
	case "", "show":
		return a.handleConfigShow()
	case "init":
		return a.handleConfigInit()
	case "get":
		return a.handleConfigGet(a.args.Arg(1))
	case "set":
		return a.handleConfigSet(a.args.Arg(1), a.args.Arg(2))
	case "path":
		return a.handleConfigPath()
	default:
		return fmt.Errorf("unknown config subcommand: %s (expected: show, init, get, set, path)", a.args.Subcommand)
	}
}

func (a *App) handleConfigShow() error {
	path, _ := config.ConfigPathTOML()
	if a.args.JSON {
		safe := a.cfg.Clone()
		if safe.Remote.APIKey != "" {
			safe.Remote.APIKey = "[REDACTED]"
		}
		return a.emitJSON("config", ConfigData{Path: path, Config: safe})
	}

	a.printf("%s\n", TitleStyle.Render("Configuration"))
	a.printf("%s\n", DimStyle.Render(path))

	section := ""
	for _, key := range config.GetAllKeys() {
		group, name, _ := strings.Cut(key, ".")
		if group != section {
			section = group
			a.printf("\n%s\n", SectionStyle.Render("["+group+"]"))
		}
		value, err := a.cfg.Get(key)
		if err != nil {
			return err
		}
		a.printf("  %s%s\n", padRight(name, 24), ValueStyle.Render(displayValue(key, value, false)))
	}
	return nil
}

// displayValue formats a config value, masking secrets unless reveal is set.
func displayValue(key string, value any, reveal bool) string {
	s := fmt.Sprintf("%v", value)
	if !config.IsSecretKey(key) || reveal {
		return s
	}
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func (a *App) handleConfigInit() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !a.args.BoolFlag("force") {
		return fmt.Errorf("%s already exists (pass --force to overwrite)", path)
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	if a.args.JSON {
		return a.emitJSON("config", ConfigData{Path: path, Config: config.Default()})
	}
	a.printf("%s Wrote %s\n", RenderStatus("ok"), path)
	return nil
}

func (a *App) handleConfigGet(key string) error {
	if key == "" {
		return ErrMissingArgument("key", "redactor config get local.model")
	}
	value, err := a.cfg.Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), strings.Join(config.GetAllKeys(), ", "))
	}
	shown := displayValue(key, value, a.args.BoolFlag("reveal"))
	if a.args.JSON {
		return a.emitJSON("config", map[string]string{"key": key, "value": shown})
	}
	a.printf("%s\n", shown)
	return nil
}

// handleConfigSet edits config.toml only. Environment overrides and flags
// are not applied first, so they never end up persisted.
func (a *App) handleConfigSet(key, value string) error {
	if key == "" || len(a.args.Positional) < 3 {
		return ErrMissingArgument("key and value", "redactor config set local.model llama3.1")
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), strings.Join(config.GetAllKeys(), ", "))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}

	if a.args.JSON {
		return a.emitJSON("config", map[string]string{"key": key, "value": displayValue(key, value, false), "path": path})
	}
	a.printf("%s %s = %s\n", RenderStatus("ok"), key, displayValue(key, value, false))
	return nil
}

func (a *App) handleConfigPath() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if a.args.JSON {
		return a.emitJSON("config", map[string]any{"config_path": path, "exists": exists})
	}
	a.printf("%s\n", path)
	if !exists {
		a.printf("%s\n", DimStyle.Render("(not created yet; run 'redactor config init')"))
	}
	return nil
}
