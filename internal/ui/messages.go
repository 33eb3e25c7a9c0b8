// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/portal"
	"github.com/morganforge/portal-tui/internal/session"
)

// StreamTokenMsg carries the accumulated assistant text mid-stream.
type StreamTokenMsg struct {
	SessionID   string
	Accumulated string
}

// StreamSettledMsg carries the terminal result of a send.
type StreamSettledMsg struct {
	Result session.Result
}

// StreamFailedMsg carries the single failure notification of a send.
type StreamFailedMsg struct {
	Failure *session.Failure
}

// historyLoadedMsg delivers the refreshed chat listing.
type historyLoadedMsg struct {
	entries []chat.HistoryEntry
	err     error
}

// chatLoadedMsg reports a lazy message-body fetch.
type chatLoadedMsg struct {
	chatID string
	err    error
}

// balanceMsg delivers a refreshed credit balance.
type balanceMsg struct {
	known   bool
	balance float64
}

// modelInfoMsg delivers the module's model details for the header.
type modelInfoMsg struct {
	info portal.ModelInfo
}
