// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements local-only mode.
//
// In local-only mode the remote summary and leak audit are refused with
// ErrRemoteBlocked, consent to remote analysis is declined automatically,
// and the local backend URL must resolve to a loopback address.
//
// # Usage
//
//	offline.SetLocalOnly(cfg.Session.LocalOnly)
//
//	if err := offline.CheckRemoteAllowed(); err != nil {
//		return err
//	}
//
//	if w := offline.BackendWarning(cfg.Local.OllamaURL); w != "" {
//		logger.Warn(w)
//	}
package offline
