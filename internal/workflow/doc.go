// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package workflow sequences one document through the redaction pipeline.
//
// # States
//
//	Idle -> ReadingFile -> Screening -> AwaitingContext -> ProcessingLocal
//	     -> AwaitingCloudConsent -> [ProcessingCloud -> Validating] -> Completed
//
// Error is reachable from every state and keeps the document so the failed
// stage can be retried. Reset returns to Idle from anywhere.
//
// Nothing leaves the machine before Consent. The remote summary sees only
// sanitized text; the leak audit is the one call that sees both texts.
//
// # Usage
//
//	s := workflow.New(workflow.Config{
//	    Connect: workflow.OllamaConnector(ollama.NewClient(cfg.OllamaConfig())),
//	    Remote:  cloud.NewClient(cfg.CloudConfig(), logger),
//	})
//	_ = s.LoadFile("notes.txt", 0)
//	res, err := s.Screen(ctx)
//	err = s.Confirm(ctx, res.DetectedContext, res.SuggestedJurisdictionID, nil)
//	report, err := s.Decline(ctx)
package workflow
