// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"sync"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrTurnInFlight rejects a new optimistic turn while the target
	// session still has an unfinalized placeholder.
	ErrTurnInFlight = errors.New("chat: a send is already in flight for this session")

	// ErrNoSuchSession indicates an id the store does not hold.
	ErrNoSuchSession = errors.New("chat: no such session")

	// ErrNoActiveTurn indicates Finalize was called with no
	// placeholder outstanding.
	ErrNoActiveTurn = errors.New("chat: no active turn to finalize")
)

// =============================================================================
// Store
// =============================================================================

// Store holds every session for the active (user, target) scope and
// tracks which one is selected. All methods are safe for concurrent
// use.
//
// Identity rules: a session id is the server-assigned chat id, except
// for the single draft session whose id is empty until the first
// successful send rebinds it. At most one draft exists at a time.
type Store struct {
	mu       sync.Mutex
	sessions []*Session
	selected string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// find returns the session with the given id, or nil. Callers hold mu.
func (st *Store) find(id string) *Session {
	for _, s := range st.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// lastPlaceholder returns the session's trailing placeholder message,
// or nil when no turn is in flight. Callers hold mu.
func lastPlaceholder(s *Session) *Message {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Placeholder {
		return last
	}
	return nil
}

// =============================================================================
// Optimistic Turn
// =============================================================================

// BeginOptimisticTurn appends the user's message and an empty
// assistant placeholder to the session in one step. An empty sessionID
// targets the draft session, creating it if absent.
//
// The append is atomic: observers never see the user message without
// its placeholder, which is what makes Rollback a simple remove-pair.
func (st *Store) BeginOptimisticTurn(sessionID, text string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(sessionID)
	if s == nil {
		if sessionID != "" {
			return ErrNoSuchSession
		}
		s = &Session{Title: DefaultTitle, DateStarted: time.Now(), loaded: true}
		st.sessions = append([]*Session{s}, st.sessions...)
	}
	if lastPlaceholder(s) != nil {
		return ErrTurnInFlight
	}

	ai := newMessage(SenderAI, "")
	ai.Placeholder = true
	s.Messages = append(s.Messages, newMessage(SenderUser, text), ai)
	return nil
}

// ApplyToken sets the placeholder's content to the full accumulated
// text so far. Content is replaced, never appended, so a repeated or
// late call cannot double-apply. With no placeholder outstanding
// (already finalized or rolled back) this is a no-op.
func (st *Store) ApplyToken(sessionID, accumulated string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if ph := lastPlaceholder(st.find(sessionID)); ph != nil {
		ph.Content = accumulated
	}
}

// Finalize commits the in-flight turn: the placeholder becomes a
// regular assistant message carrying final, which supersedes whatever
// tokens accumulated. For a draft session realID becomes the session's
// identity and title (when non-empty) its server-generated title.
// Returns the session's id after any rebind.
func (st *Store) Finalize(sessionID, realID, title, final string) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(sessionID)
	ph := lastPlaceholder(s)
	if ph == nil {
		return "", ErrNoActiveTurn
	}

	ph.Content = final
	ph.Placeholder = false

	if s.IsDraft() && realID != "" {
		s.ID = realID
		if st.selected == "" {
			st.selected = realID
		}
	}
	if title != "" {
		s.Title = title
	}
	return s.ID, nil
}

// Rollback removes the in-flight turn's user message and placeholder,
// restoring the session to its pre-send state. A draft session that
// becomes empty is discarded entirely. Calling with no turn in flight
// is a no-op.
func (st *Store) Rollback(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(sessionID)
	if lastPlaceholder(s) == nil {
		return
	}
	// The placeholder is always preceded by the user message that
	// started the turn; both were appended together.
	n := len(s.Messages) - 2
	if n < 0 {
		n = 0
	}
	s.Messages = s.Messages[:n]

	if s.IsDraft() && len(s.Messages) == 0 {
		for i, cand := range st.sessions {
			if cand == s {
				st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
				break
			}
		}
	}
}

// =============================================================================
// Selection & History
// =============================================================================

// Select makes id the active session. Empty id means no selection
// (the next send starts a draft).
func (st *Store) Select(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" && st.find(id) == nil {
		return ErrNoSuchSession
	}
	st.selected = id
	return nil
}

// Selected returns the active session id, empty when none.
func (st *Store) Selected() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.selected
}

// SelectedSession returns a deep copy of the active session. When no
// id is selected it returns the draft session if one exists.
func (st *Store) SelectedSession() (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(st.selected)
	if s == nil {
		return nil, false
	}
	return s.clone(), true
}

// Sessions returns deep copies of all sessions in display order
// (draft first, then server order).
func (st *Store) Sessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]*Session, len(st.sessions))
	for i, s := range st.sessions {
		out[i] = s.clone()
	}
	return out
}

// ReplaceHistory installs the server's chat listing, preserving any
// in-memory draft and any already-loaded message bodies.
func (st *Store) ReplaceHistory(entries []HistoryEntry) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var next []*Session
	if draft := st.find(""); draft != nil {
		next = append(next, draft)
	}
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = DefaultTitle
		}
		if existing := st.find(e.ID); existing != nil && existing.ID != "" {
			existing.Title = title
			next = append(next, existing)
			continue
		}
		next = append(next, &Session{ID: e.ID, Title: title, DateStarted: e.DateStarted})
	}
	st.sessions = next

	if st.selected != "" && st.find(st.selected) == nil {
		st.selected = ""
	}
}

// HistoryEntry is one chat from the server's history listing.
type HistoryEntry struct {
	ID          string
	Title       string
	DateStarted time.Time
}

// NeedsLoad reports whether the session's messages have not been
// fetched yet. Unknown ids need no load.
func (st *Store) NeedsLoad(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(id)
	return s != nil && !s.loaded
}

// SetMessages installs lazily fetched message bodies for a history
// session. A session with a turn in flight is left untouched so a
// slow history fetch cannot clobber live streaming state.
func (st *Store) SetMessages(id string, msgs []StoredMessage) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.find(id)
	if s == nil {
		return ErrNoSuchSession
	}
	if lastPlaceholder(s) != nil {
		return nil
	}

	s.Messages = make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		s.Messages = append(s.Messages, newMessage(Sender(m.Sender), m.Content))
	}
	s.loaded = true
	return nil
}

// StoredMessage is one persisted message from the backend.
type StoredMessage struct {
	Sender  string
	Content string
}
