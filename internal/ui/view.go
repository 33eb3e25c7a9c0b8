// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/util"
)

// generatingLabel is shown for a placeholder that has no tokens yet.
const generatingLabel = "Generating..."

// View renders the full screen.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	transcript := m.viewport.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, transcript)

	inputBox := m.theme.InputBox
	if !m.canSend() {
		inputBox = m.theme.InputBlocked
	}
	input := inputBox.Width(m.width - 2).Render(m.input.View())

	return strings.Join([]string{header, body, input, m.renderStatus()}, "\n")
}

func (m Model) renderHeader() string {
	left := "portal-tui"
	if m.modelName != "" {
		left += "  ·  " + m.modelName
	}

	right := ""
	if bal, ok := m.deps.Ledger.Balance(m.assignment()); ok {
		right = "credits " + util.FormatFloat(bal, 4)
		if cost, ok := m.deps.Ledger.LastCost(m.assignment()); ok {
			right += "  last " + util.FormatFloat(cost, 6)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderSidebar() string {
	sidebarW := m.deps.Cfg.UI.SidebarWidth
	if sidebarW <= 0 || sidebarW > m.width/2 {
		sidebarW = m.width / 4
	}
	innerW := sidebarW - 3 // border and padding

	sessions := m.deps.Store.Sessions()
	selected := m.deps.Store.Selected()

	var b strings.Builder
	for i, s := range sessions {
		title := s.Title
		if s.IsDraft() {
			title = "+ " + title
		}
		title = runewidth.Truncate(title, innerW, "…")
		title = runewidth.FillRight(title, innerW)

		style := m.theme.SidebarItem
		if (m.focus == focusSidebar && i == m.sidebarIdx) ||
			(m.focus != focusSidebar && s.ID == selected && !s.IsDraft()) {
			style = m.theme.SidebarSel
		}
		b.WriteString(style.Render(title))
		b.WriteString("\n")
	}
	if len(sessions) == 0 {
		b.WriteString(m.theme.SidebarItem.Render(runewidth.FillRight("no chats", innerW)))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarW).
		Height(m.viewport.Height).
		Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderStatus() string {
	text := m.status
	if text == "" {
		if m.focus == focusSidebar {
			text = "enter: open chat  ·  tab: back to input  ·  ctrl+n: new chat"
		} else {
			text = "enter: send  ·  tab: chats  ·  ctrl+n: new chat  ·  esc: quit"
		}
	}
	if !m.canSend() {
		return m.theme.StatusWarn.Render("credit balance is negative; sending disabled  ·  " + text)
	}
	switch m.statusKind {
	case statusError:
		return m.theme.StatusError.Render(text)
	case statusWarn:
		return m.theme.StatusWarn.Render(text)
	default:
		return m.theme.StatusBar.Render(text)
	}
}

// canSend mirrors the ledger gate so the input visually reflects it.
func (m Model) canSend() bool {
	return m.deps.Ledger.CanSend(m.assignment())
}

// refreshTranscript re-renders the selected session into the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	s, ok := m.deps.Store.SelectedSession()
	if !ok {
		m.viewport.SetContent(m.theme.Placeholder.Render("Start typing to begin a new chat."))
		return
	}

	var b strings.Builder
	for _, msg := range s.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func (m Model) renderMessage(msg *chat.Message) string {
	if msg.Sender == chat.SenderUser {
		return m.theme.UserLabel.Render("You") + "\n" + msg.Content + "\n"
	}

	label := m.theme.AILabel.Render("Assistant") + "\n"
	if msg.Placeholder {
		if msg.Content == "" {
			return label + m.theme.Placeholder.Render(generatingLabel) + "\n"
		}
		// Mid-stream content is rendered plain; markdown is unstable
		// on partial input.
		return label + msg.Content + "\n"
	}

	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			return label + strings.TrimRight(out, "\n") + "\n"
		}
	}
	return label + msg.Content + "\n"
}
