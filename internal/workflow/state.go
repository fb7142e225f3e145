// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"errors"
	"time"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/export"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/screening"
)

// =============================================================================
// STATES
// =============================================================================

// State is a stage of the document pipeline.
type State string

const (
	// StateIdle has no document loaded
	StateIdle State = "Idle"

	// StateReadingFile is loading and decoding the document
	StateReadingFile State = "ReadingFile"

	// StateScreening is classifying a sample of the document. With
	// Snapshot.ConnectionError set it is waiting for a retry instead.
	StateScreening State = "Screening"

	// StateAwaitingContext waits for the user to confirm context and jurisdiction
	StateAwaitingContext State = "AwaitingContext"

	// StateProcessingLocal runs chunked redaction and risk assessment
	StateProcessingLocal State = "ProcessingLocal"

	// StateAwaitingCloudConsent holds local results until the user decides
	StateAwaitingCloudConsent State = "AwaitingCloudConsent"

	// StateProcessingCloud is producing the remote summary
	StateProcessingCloud State = "ProcessingCloud"

	// StateValidating is running the remote leak audit
	StateValidating State = "Validating"

	// StateCompleted has a final report
	StateCompleted State = "Completed"

	// StateError holds a failed stage that can be retried
	StateError State = "Error"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Busy reports whether the state is waiting on a backend rather than on the user.
func (s State) Busy() bool {
	switch s {
	case StateReadingFile, StateProcessingLocal, StateProcessingCloud, StateValidating:
		return true
	}
	return false
}

// transitions lists the forward edges. Error is reachable from every state
// and Idle through Reset; neither is listed here.
var transitions = map[State][]State{
	StateIdle:                 {StateReadingFile},
	StateReadingFile:          {StateScreening, StateAwaitingContext},
	StateScreening:            {StateScreening, StateAwaitingContext},
	StateAwaitingContext:      {StateProcessingLocal},
	StateProcessingLocal:      {StateAwaitingCloudConsent},
	StateAwaitingCloudConsent: {StateProcessingCloud, StateCompleted},
	StateProcessingCloud:      {StateValidating, StateCompleted},
	StateValidating:           {StateCompleted},
	StateCompleted:            {},
	StateError:                {StateScreening, StateProcessingLocal},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	if to == StateError || to == StateIdle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrStaleSession is returned by an operation whose session was reset
	// or replaced while it was running. Its result has been discarded.
	ErrStaleSession = errors.New("session was reset; result discarded")

	// ErrNoDocument is returned when there is no document to work on.
	ErrNoDocument = errors.New("no document loaded")

	// ErrConsentRequired is returned when the final report is requested
	// before the remote analysis decision.
	ErrConsentRequired = errors.New("remote analysis must be accepted or declined first")
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Progress is the chunk counter of the running redaction.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Snapshot is a copy of the session state for display.
type Snapshot struct {
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
	State      State  `json:"state"`

	// ConnectionError marks the Screening sub-state waiting for the local backend.
	ConnectionError bool   `json:"connectionError,omitempty"`
	Error           string `json:"error,omitempty"`
	CanRetry        bool   `json:"canRetry,omitempty"`

	FileName     string                    `json:"fileName,omitempty"`
	Screening    *screening.Result         `json:"screening,omitempty"`
	Context      string                    `json:"context,omitempty"`
	Jurisdiction jurisdiction.Jurisdiction `json:"jurisdiction"`
	Progress     Progress                  `json:"progress"`

	Risk         *screening.Risk `json:"risk,omitempty"`
	Stats        export.Stats    `json:"stats"`
	FailedChunks []int           `json:"failedChunks,omitempty"`
	Notes        []string        `json:"notes,omitempty"`

	RemoteSkipped bool               `json:"remoteSkipped,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	SummaryError  string             `json:"summaryError,omitempty"`
	Audit         *cloud.AuditResult `json:"audit,omitempty"`
	AuditError    string             `json:"auditError,omitempty"`

	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// Degraded reports whether any chunk kept its original text.
func (s Snapshot) Degraded() bool {
	return len(s.FailedChunks) > 0
}
