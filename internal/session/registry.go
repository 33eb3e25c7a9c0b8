// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/credits"
	"github.com/morganforge/portal-tui/internal/portal"
)

// ErrSendInFlight rejects a second concurrent send into the same
// session. Distinct sessions may stream concurrently.
var ErrSendInFlight = errors.New("session: a send is already in flight for this session")

// Registry creates operations and enforces single-flight per session.
// The draft session counts as one session under the empty key.
type Registry struct {
	transport portal.Transport
	store     *chat.Store
	ledger    *credits.Ledger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewRegistry wires a registry over the given collaborators.
func NewRegistry(t portal.Transport, store *chat.Store, ledger *credits.Ledger) *Registry {
	return &Registry{
		transport: t,
		store:     store,
		ledger:    ledger,
		inFlight:  make(map[string]bool),
	}
}

// BeginParams carries everything needed to start a send.
type BeginParams struct {
	SessionID string // empty targets the draft session
	UserID    string
	Target    Target
	Text      string
	Callbacks Callbacks
}

// Begin validates the send and applies the optimistic turn, returning
// an Operation ready to Run. On any error the store is untouched and
// nothing is registered.
//
// Validation failures come back as *Failure with FailureValidation so
// callers present them the same way as later failures.
func (r *Registry) Begin(p BeginParams) (*Operation, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, &Failure{Kind: FailureValidation, Message: "message is empty"}
	}
	if p.UserID == "" {
		return nil, &Failure{Kind: FailureValidation, Message: "no user configured"}
	}
	if !p.Target.valid() {
		return nil, &Failure{Kind: FailureValidation, Message: "choose a module or an agent", Err: portal.ErrInvalidTarget}
	}
	if !r.ledger.CanSend(credits.Assignment{UserID: p.UserID, ModuleID: p.Target.ModuleID}) {
		return nil, &Failure{Kind: FailureValidation, Message: "credit balance is negative"}
	}

	r.mu.Lock()
	if r.inFlight[p.SessionID] {
		r.mu.Unlock()
		return nil, ErrSendInFlight
	}
	r.inFlight[p.SessionID] = true
	r.mu.Unlock()

	if err := r.store.BeginOptimisticTurn(p.SessionID, text); err != nil {
		r.release(p.SessionID)
		if errors.Is(err, chat.ErrTurnInFlight) {
			return nil, ErrSendInFlight
		}
		return nil, &Failure{Kind: FailureValidation, Message: "cannot start send", Err: err}
	}

	return &Operation{
		transport: r.transport,
		store:     r.store,
		ledger:    r.ledger,
		registry:  r,
		key:       p.SessionID,
		userID:    p.UserID,
		target:    p.Target,
		text:      text,
		callbacks: p.Callbacks,
		state:     StateIdle,
	}, nil
}

// InFlight reports whether a send is active for the session.
func (r *Registry) InFlight(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[sessionID]
}

func (r *Registry) release(sessionID string) {
	r.mu.Lock()
	delete(r.inFlight, sessionID)
	r.mu.Unlock()
}
