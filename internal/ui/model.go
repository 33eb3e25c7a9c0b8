// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/credits"
	"github.com/morganforge/portal-tui/internal/portal"
	"github.com/morganforge/portal-tui/internal/session"
)

// Deps are the wired collaborators the view renders and drives.
type Deps struct {
	Cfg      *config.Config
	Client   *portal.Client
	Store    *chat.Store
	Ledger   *credits.Ledger
	Registry *session.Registry
}

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarn
	statusError
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	deps  Deps
	theme Theme

	viewport viewport.Model
	input    textinput.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	focus      focusArea
	sidebarIdx int

	sending    bool
	cancelSend context.CancelFunc

	status     string
	statusKind statusKind

	modelName string
}

// New constructs the chat view model.
func New(deps Deps) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 4000
	input.Focus()

	return Model{
		deps:  deps,
		theme: ResolveTheme(deps.Cfg.UI.Theme),
		input: input,
	}
}

// Init kicks off the initial data loads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.loadHistoryCmd(),
		m.loadBalanceCmd(),
		m.loadModelCmd(),
	)
}

// assignment is the credit scope for the configured module.
func (m Model) assignment() credits.Assignment {
	return credits.Assignment{
		UserID:   m.deps.Cfg.Portal.UserID,
		ModuleID: m.deps.Cfg.Portal.ModuleID,
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) loadHistoryCmd() tea.Cmd {
	client := m.deps.Client
	userID := m.deps.Cfg.Portal.UserID
	moduleID := m.deps.Cfg.Portal.ModuleID
	return func() tea.Msg {
		if moduleID == "" {
			return historyLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		summaries, err := client.GetChatHistory(ctx, userID, moduleID)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		entries := make([]chat.HistoryEntry, 0, len(summaries))
		for _, s := range summaries {
			entries = append(entries, chat.HistoryEntry{
				ID:          s.ChatIDString(),
				Title:       s.Title,
				DateStarted: s.StartedAt(),
			})
		}
		return historyLoadedMsg{entries: entries}
	}
}

func (m Model) loadBalanceCmd() tea.Cmd {
	ledger := m.deps.Ledger
	client := m.deps.Client
	asg := m.assignment()
	return func() tea.Msg {
		if asg.ModuleID == "" {
			return balanceMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := ledger.Load(ctx, client, asg); err != nil {
			return balanceMsg{}
		}
		bal, known := ledger.Balance(asg)
		return balanceMsg{known: known, balance: bal}
	}
}

func (m Model) loadModelCmd() tea.Cmd {
	client := m.deps.Client
	moduleID := m.deps.Cfg.Portal.ModuleID
	return func() tea.Msg {
		if moduleID == "" {
			return modelInfoMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		info, err := client.ModuleModel(ctx, moduleID)
		if err != nil {
			return modelInfoMsg{}
		}
		return modelInfoMsg{info: info}
	}
}

func (m Model) loadChatCmd(chatID string) tea.Cmd {
	client := m.deps.Client
	store := m.deps.Store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msgs, err := client.GetChatMessages(ctx, chatID)
		if err != nil {
			return chatLoadedMsg{chatID: chatID, err: err}
		}
		stored := make([]chat.StoredMessage, len(msgs))
		for i, msg := range msgs {
			stored[i] = chat.StoredMessage{Sender: msg.Sender, Content: msg.Content}
		}
		if err := store.SetMessages(chatID, stored); err != nil {
			return chatLoadedMsg{chatID: chatID, err: err}
		}
		return chatLoadedMsg{chatID: chatID}
	}
}

// startSend begins a streamed send for the current input. The
// operation runs on its own goroutine; tokens and the settled result
// come back through Program.Send.
func (m *Model) startSend() tea.Cmd {
	text := m.input.Value()

	op, err := m.deps.Registry.Begin(session.BeginParams{
		SessionID: m.deps.Store.Selected(),
		UserID:    m.deps.Cfg.Portal.UserID,
		Target: session.Target{
			ModuleID: m.deps.Cfg.Portal.ModuleID,
			AgentID:  m.deps.Cfg.Portal.AgentID,
		},
		Text: text,
		Callbacks: session.Callbacks{
			OnToken: func(sessionID, accumulated string) {
				send(StreamTokenMsg{SessionID: sessionID, Accumulated: accumulated})
			},
			OnFailure: func(_ string, f *session.Failure) {
				send(StreamFailedMsg{Failure: f})
			},
		},
	})
	if err != nil {
		m.setStatusFromError(err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSend = cancel
	m.sending = true
	m.input.Reset()
	m.setStatus("sending...", statusInfo)

	go func() {
		res := op.Run(ctx)
		send(StreamSettledMsg{Result: res})
	}()

	return nil
}

func (m *Model) setStatus(msg string, kind statusKind) {
	m.status = msg
	m.statusKind = kind
}

func (m *Model) setStatusFromError(err error) {
	var f *session.Failure
	if errors.As(err, &f) {
		m.setStatus(f.Message, statusError)
		return
	}
	m.setStatus(err.Error(), statusError)
}
