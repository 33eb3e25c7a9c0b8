// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one chat message as held by the client.
//
// Placeholder marks an assistant message whose content is still being
// streamed. Its Content is always the full text accumulated so far,
// never a fragment, so rendering a placeholder mid-stream and
// rendering it after finalization go through the same path.
type Message struct {
	ID          string
	Sender      Sender
	Content     string
	Timestamp   time.Time
	Placeholder bool
}

func newMessage(sender Sender, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Session is one chat thread. An empty ID marks the draft session:
// the server has not created the chat yet and will assign the real id
// in the done event of the first successful send.
type Session struct {
	ID          string
	Title       string
	DateStarted time.Time
	Messages    []*Message

	// loaded is false for history entries whose messages have not
	// been fetched yet.
	loaded bool
}

// DefaultTitle is shown for sessions the server has not titled.
const DefaultTitle = "New Chat"

// IsDraft reports whether the session has no server-side identity yet.
func (s *Session) IsDraft() bool { return s.ID == "" }

// clone returns a deep copy safe to hand to the render layer.
func (s *Session) clone() *Session {
	out := &Session{
		ID:          s.ID,
		Title:       s.Title,
		DateStarted: s.DateStarted,
		Messages:    make([]*Message, len(s.Messages)),
		loaded:      s.loaded,
	}
	for i, m := range s.Messages {
		cp := *m
		out.Messages[i] = &cp
	}
	return out
}
