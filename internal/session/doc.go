// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one streamed chat send from submission to
// commit or rollback.
//
// An Operation owns the full lifecycle: validate, apply the optimistic
// turn to the chat store, open the stream, decode frames, and settle
// into exactly one terminal state. The state machine is explicit:
//
//	Idle -> Sending -> Finalizing -> Committed
//	             \----------------> RolledBack
//
// Every failure path, regardless of cause, converges on the same
// external behavior: the store is rolled back to its pre-send state
// and at most one failure notification is emitted. Cancellation rolls
// back silently.
//
// A Registry enforces single-flight per session so a user cannot race
// two sends into the same chat.
package session
