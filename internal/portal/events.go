// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// =============================================================================
// Wire Events
// =============================================================================

// EventType discriminates the streamed event union.
type EventType string

const (
	// EventToken carries one incremental content fragment.
	EventToken EventType = "token"
	// EventDone terminates a successful stream and carries the
	// authoritative final message.
	EventDone EventType = "done"
	// EventError reports a server-side failure mid-stream.
	EventError EventType = "error"
)

// StreamEvent is one decoded frame from the send-message stream.
// Fields are populated according to Type; unknown fields are ignored
// so the backend can evolve without breaking older clients.
type StreamEvent struct {
	Type EventType

	// Token fields.
	Data string

	// Done fields. ChatID identifies the (possibly newly created)
	// chat. ChatTitle is only present when the server generated a
	// title for a new chat. Final is the complete message text and
	// supersedes any accumulated tokens. Cost is nil when the server
	// reported no charge for this exchange.
	ChatID    string
	ChatTitle string
	Final     string
	Cost      *float64

	// Error fields.
	Message string
}

// wireEvent mirrors the JSON layout. chat_id arrives as a JSON number
// from the backend but older deployments sent strings; flexID accepts
// both.
type wireEvent struct {
	Type      string   `json:"type"`
	Data      string   `json:"data"`
	ChatID    flexID   `json:"chat_id"`
	ChatTitle string   `json:"chat_title"`
	Final     string   `json:"final"`
	Cost      *float64 `json:"cost"`
	Message   string   `json:"message"`
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// parseEvent decodes one frame payload into a StreamEvent.
func parseEvent(payload []byte) (StreamEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return StreamEvent{}, fmt.Errorf("decode event: %w", err)
	}

	ev := StreamEvent{
		Type:      EventType(w.Type),
		Data:      w.Data,
		ChatID:    string(w.ChatID),
		ChatTitle: w.ChatTitle,
		Final:     w.Final,
		Cost:      w.Cost,
		Message:   w.Message,
	}

	switch ev.Type {
	case EventToken, EventDone, EventError:
		return ev, nil
	default:
		return StreamEvent{}, fmt.Errorf("decode event: unknown type %q", w.Type)
	}
}

// CostString renders the event cost for display, or "" when absent.
func (e StreamEvent) CostString() string {
	if e.Cost == nil {
		return ""
	}
	return strconv.FormatFloat(*e.Cost, 'f', -1, 64)
}
