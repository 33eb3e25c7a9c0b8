// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "fmt"

// State is the lifecycle position of one send operation. Transitions
// only move forward; a terminal state is never left.
type State int

const (
	StateIdle State = iota
	StateSending
	StateFinalizing
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateFinalizing:
		return "finalizing"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// FailureKind classifies why a send failed. All kinds produce the
// same external behavior (rollback plus one notification); the kind
// exists for logging and tests.
type FailureKind int

const (
	FailureValidation FailureKind = iota
	// FailureTransport covers rejected requests, non-2xx statuses,
	// and streams that end before a done event.
	FailureTransport
	FailureProtocol
	// FailureServer is an in-stream error event from the backend.
	FailureServer
)

func (k FailureKind) String() string {
	switch k {
	case FailureValidation:
		return "validation"
	case FailureTransport:
		return "transport"
	case FailureProtocol:
		return "protocol"
	case FailureServer:
		return "server"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// Failure describes a failed send in user-presentable terms.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }
