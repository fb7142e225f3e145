// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage records completed sessions in a local SQLite database.
//
// Only metadata is stored: file name, jurisdiction, risk level, length
// and redaction counts, chunk failures and whether remote analysis ran.
// Document text, sanitized text and redaction keys are never persisted
// here.
//
// # Usage
//
//	h, err := storage.Open(path)
//	defer h.Close()
//
//	rec, err := h.Record(ctx, storage.Record{FileName: "intake.csv", RiskLevel: "High"})
//	recent, err := h.List(ctx, 20)
//
// # Storage Location
//
// The database lives at ~/.redactor/history.db unless configured otherwise.
package storage
