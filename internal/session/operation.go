// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/credits"
	"github.com/morganforge/portal-tui/internal/portal"
)

// readBufSize is the chunk size for draining the stream body. Small
// enough that tokens surface promptly, large enough to not thrash.
const readBufSize = 4096

// Target names the assistant being messaged: exactly one of a module
// assignment or a marketplace agent.
type Target struct {
	ModuleID string
	AgentID  string
}

func (t Target) valid() bool {
	return (t.ModuleID == "") != (t.AgentID == "")
}

// Callbacks let a UI observe the operation. All fields are optional.
// OnToken receives the full accumulated text, not the fragment.
// OnFailure fires at most once per operation and never fires for
// cancellation.
type Callbacks struct {
	OnToken   func(sessionID, accumulated string)
	OnState   func(sessionID string, s State)
	OnFailure func(sessionID string, f *Failure)
}

// Result is the settled outcome of one send.
type Result struct {
	State    State
	ChatID   string // session id after any draft rebind
	Final    string
	Cost     *float64
	Canceled bool
	Failure  *Failure
}

// Operation is one streamed send. Create it with Registry.Begin and
// drive it with Run; an Operation is single-use.
type Operation struct {
	transport portal.Transport
	store     *chat.Store
	ledger    *credits.Ledger

	registry  *Registry
	key       string // session id at begin time, "" for draft
	userID    string
	target    Target
	text      string
	callbacks Callbacks

	mu          sync.Mutex
	state       State
	accumulated strings.Builder
	charged     bool
	notified    bool
}

// SessionID returns the id the operation was started against
// (empty for a draft send).
func (op *Operation) SessionID() string { return op.key }

// State returns the operation's current state.
func (op *Operation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

func (op *Operation) setState(s State) {
	op.mu.Lock()
	op.state = s
	op.mu.Unlock()
	if op.callbacks.OnState != nil {
		op.callbacks.OnState(op.key, s)
	}
}

// Run drives the send to a terminal state and returns the outcome.
// A context cancellation rolls back without a failure notification;
// the returned Result carries Canceled instead.
func (op *Operation) Run(ctx context.Context) Result {
	defer op.registry.release(op.key)

	op.setState(StateSending)

	body, err := op.transport.OpenStream(ctx, portal.SendRequest{
		ChatID:   op.key,
		UserID:   op.userID,
		ModuleID: op.target.ModuleID,
		AgentID:  op.target.AgentID,
		Message:  op.text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return op.rollbackCanceled()
		}
		// A rejected request, non-2xx status included, never opened a
		// stream; server failures are only ever reported in-stream.
		return op.rollback(&Failure{Kind: FailureTransport, Message: "failed to send message", Err: err})
	}
	defer body.Close()

	decoder := portal.NewFrameDecoder()
	buf := make([]byte, readBufSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			events, decErr := decoder.Feed(buf[:n])
			for _, ev := range events {
				if done, res := op.handleEvent(ev); done {
					return res
				}
			}
			if decErr != nil {
				if ctx.Err() != nil {
					return op.rollbackCanceled()
				}
				return op.rollback(&Failure{Kind: FailureProtocol, Message: "response stream was garbled", Err: decErr})
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return op.rollbackCanceled()
			}
			if errors.Is(readErr, io.EOF) {
				// The server closed without a done event; the
				// exchange never completed.
				return op.rollback(&Failure{Kind: FailureTransport, Message: "stream ended before completion"})
			}
			return op.rollback(&Failure{Kind: FailureTransport, Message: "connection lost mid-stream", Err: readErr})
		}
	}
}

// handleEvent applies one decoded event. done is true once the
// operation has settled.
func (op *Operation) handleEvent(ev portal.StreamEvent) (bool, Result) {
	switch ev.Type {
	case portal.EventToken:
		op.mu.Lock()
		op.accumulated.WriteString(ev.Data)
		acc := op.accumulated.String()
		op.mu.Unlock()

		op.store.ApplyToken(op.key, acc)
		if op.callbacks.OnToken != nil {
			op.callbacks.OnToken(op.key, acc)
		}
		return false, Result{}

	case portal.EventDone:
		return true, op.commit(ev)

	case portal.EventError:
		msg := ev.Message
		if msg == "" {
			msg = "the server reported an error"
		}
		return true, op.rollback(&Failure{Kind: FailureServer, Message: msg})

	default:
		return true, op.rollback(&Failure{Kind: FailureProtocol, Message: "unexpected event in stream"})
	}
}

// commit finalizes the turn from a done event. The event's final text
// is authoritative; accumulated tokens are display state only.
func (op *Operation) commit(ev portal.StreamEvent) Result {
	op.setState(StateFinalizing)

	// Charge before finalize so a committed turn is never shown with
	// a stale balance. At most one charge per operation.
	if ev.Cost != nil {
		op.mu.Lock()
		shouldCharge := !op.charged
		op.charged = true
		op.mu.Unlock()
		if shouldCharge {
			op.ledger.Charge(credits.Assignment{
				UserID:   op.userID,
				ModuleID: op.target.ModuleID,
			}, *ev.Cost, ev.ChatID)
		}
	}

	chatID, err := op.store.Finalize(op.key, ev.ChatID, ev.ChatTitle, ev.Final)
	if err != nil {
		// The placeholder vanished underneath us. Nothing to roll
		// back; report the inconsistency.
		return op.rollback(&Failure{Kind: FailureProtocol, Message: "chat state changed during send", Err: err})
	}

	op.setState(StateCommitted)
	return Result{
		State:  StateCommitted,
		ChatID: chatID,
		Final:  ev.Final,
		Cost:   ev.Cost,
	}
}

// rollback undoes the optimistic turn and emits the single failure
// notification.
func (op *Operation) rollback(f *Failure) Result {
	op.store.Rollback(op.key)
	op.setState(StateRolledBack)

	op.mu.Lock()
	notify := !op.notified
	op.notified = true
	op.mu.Unlock()

	if notify && op.callbacks.OnFailure != nil {
		op.callbacks.OnFailure(op.key, f)
	}
	return Result{State: StateRolledBack, Failure: f}
}

// rollbackCanceled undoes the optimistic turn silently. A user who
// tore down the view did not ask for an error dialog.
func (op *Operation) rollbackCanceled() Result {
	op.store.Rollback(op.key)
	op.setState(StateRolledBack)
	return Result{State: StateRolledBack, Canceled: true}
}
