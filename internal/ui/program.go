// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// The running program is held package-wide so streaming callbacks,
// which fire on the operation's goroutine, can inject messages into
// the Bubble Tea loop.
var (
	programMu  sync.Mutex
	programRef *tea.Program
)

// SetProgram registers the running program. Call before Program.Run.
func SetProgram(p *tea.Program) {
	programMu.Lock()
	programRef = p
	programMu.Unlock()
}

// send delivers a message to the running program, dropping it when no
// program is active (e.g. during shutdown).
func send(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
