// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/morganforge/portal-tui/internal/session"
	"github.com/morganforge/portal-tui/internal/util"
)

// Update is the Bubble Tea message loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}

	case StreamTokenMsg:
		// Only re-render when the streaming chat is on screen.
		if msg.SessionID == m.deps.Store.Selected() {
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}

	case StreamSettledMsg:
		m.sending = false
		m.cancelSend = nil
		res := msg.Result
		if res.State == session.StateCommitted {
			m.setStatus(m.committedStatus(res), statusInfo)
			m.refreshTranscript()
			m.viewport.GotoBottom()
			// The server may have created and titled a new chat.
			cmds = append(cmds, m.loadHistoryCmd())
		} else if res.Canceled {
			m.setStatus("cancelled", statusWarn)
			m.refreshTranscript()
		}

	case StreamFailedMsg:
		m.setStatus(msg.Failure.Message, statusError)
		m.refreshTranscript()

	case historyLoadedMsg:
		if msg.err == nil {
			m.deps.Store.ReplaceHistory(msg.entries)
			m.clampSidebar()
			m.refreshTranscript()
		}

	case chatLoadedMsg:
		if msg.err != nil {
			m.setStatus("could not load chat: "+msg.err.Error(), statusError)
		} else {
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}

	case balanceMsg:
		// Balance lives in the ledger; this message only triggers a
		// header re-render, which View does unconditionally.

	case modelInfoMsg:
		m.modelName = msg.info.Name
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses that the focused widget should not
// swallow. handled=false falls through to widget updates.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		if m.sending && m.cancelSend != nil {
			m.cancelSend()
			return m, nil, true
		}
		return m, tea.Quit, true

	case "esc":
		if m.sending && m.cancelSend != nil {
			m.cancelSend()
			return m, nil, true
		}
		if m.focus == focusSidebar {
			m.focus = focusInput
			m.input.Focus()
			return m, nil, true
		}
		return m, tea.Quit, true

	case "tab":
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil, true

	case "ctrl+n":
		m.deps.Store.Select("")
		m.deps.Ledger.ClearLastCost(m.assignment())
		m.sidebarIdx = -1
		m.setStatus("new chat", statusInfo)
		m.refreshTranscript()
		return m, nil, true

	case "enter":
		if m.focus == focusSidebar {
			return m.openSelectedChat()
		}
		if m.sending {
			m.setStatus("still sending...", statusWarn)
			return m, nil, true
		}
		cmd := m.startSend()
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, cmd, true

	case "up", "k":
		if m.focus == focusSidebar {
			if m.sidebarIdx > 0 {
				m.sidebarIdx--
			}
			return m, nil, true
		}

	case "down", "j":
		if m.focus == focusSidebar {
			if m.sidebarIdx < len(m.deps.Store.Sessions())-1 {
				m.sidebarIdx++
			}
			return m, nil, true
		}
	}
	return m, nil, false
}

// openSelectedChat switches to the highlighted sidebar entry, lazily
// fetching its messages on first open.
func (m Model) openSelectedChat() (tea.Model, tea.Cmd, bool) {
	sessions := m.deps.Store.Sessions()
	if m.sidebarIdx < 0 || m.sidebarIdx >= len(sessions) {
		return m, nil, true
	}
	target := sessions[m.sidebarIdx]
	if err := m.deps.Store.Select(target.ID); err != nil {
		m.setStatus(err.Error(), statusError)
		return m, nil, true
	}
	m.focus = focusInput
	m.input.Focus()
	m.refreshTranscript()
	m.viewport.GotoBottom()

	if target.ID != "" && m.deps.Store.NeedsLoad(target.ID) {
		return m, m.loadChatCmd(target.ID), true
	}
	return m, nil, true
}

// clampSidebar keeps the highlight inside the listing after a refresh.
func (m *Model) clampSidebar() {
	n := len(m.deps.Store.Sessions())
	if m.sidebarIdx >= n {
		m.sidebarIdx = n - 1
	}
}

// layout recomputes widget geometry and the markdown renderer after a
// resize.
func (m *Model) layout() {
	sidebarW := m.deps.Cfg.UI.SidebarWidth
	if sidebarW <= 0 || sidebarW > m.width/2 {
		sidebarW = m.width / 4
	}
	transcriptW := m.width - sidebarW - 1
	transcriptH := m.height - 4 // header, input border, input, status

	if !m.ready {
		m.viewport = viewport.New(transcriptW, transcriptH)
		m.ready = true
	} else {
		m.viewport.Width = transcriptW
		m.viewport.Height = transcriptH
	}
	m.input.Width = m.width - 4

	if m.deps.Cfg.UI.Markdown {
		wrap := transcriptW - 2
		if wrap < 20 {
			wrap = 20
		}
		if r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(wrap),
		); err == nil {
			m.renderer = r
		}
	}
}

// committedStatus builds the post-send status line.
func (m Model) committedStatus(res session.Result) string {
	s := "sent"
	if res.Cost != nil {
		s += "  cost " + util.FormatFloat(*res.Cost, 6)
	}
	if bal, ok := m.deps.Ledger.Balance(m.assignment()); ok {
		s += "  balance " + util.FormatFloat(bal, 4)
	}
	return s
}
