// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui draws the terminal progress view shown while a document is
// screened and redacted chunk by chunk.
//
// RunWithProgress hosts a Bubble Tea program around a unit of work and
// hands the work a Reporter; PlainReporter is the line-based fallback for
// pipes and CI logs.
package ui
