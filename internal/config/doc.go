// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for redactor.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env support, environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (highest first):
//   - Environment variables (REDACTOR_*, OPENROUTER_API_KEY)
//   - .env in the working directory (never overrides the real environment)
//   - ~/.redactor/config.toml
//   - ~/.redactor/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v (using defaults)", err)
//	}
//	client := ollama.NewClient(cfg.OllamaConfig())
//
// Dot-notation access backs `redactor config get|set`:
//
//	cfg.Set("local.chunk_limit", "8000")
//	v, _ := cfg.Get("local.chunk_limit")
package config
