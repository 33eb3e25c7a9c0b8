// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/credits"
	"github.com/morganforge/portal-tui/internal/session"
)

func testDeps() Deps {
	cfg := config.Default()
	cfg.Portal.UserID = "u1"
	cfg.Portal.ModuleID = "m1"
	cfg.UI.Markdown = false
	cfg.UI.Theme = "dark"

	store := chat.NewStore()
	ledger := credits.NewLedger(nil)
	return Deps{
		Cfg:      cfg,
		Store:    store,
		Ledger:   ledger,
		Registry: session.NewRegistry(nil, store, ledger),
	}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func TestResolveTheme(t *testing.T) {
	if th := ResolveTheme("dark"); !th.Dark || th.GlamourStyle() != "dark" {
		t.Errorf("dark theme = %+v", th.Dark)
	}
	if th := ResolveTheme("light"); th.Dark || th.GlamourStyle() != "light" {
		t.Errorf("light theme = %+v", th.Dark)
	}
}

func TestRenderMessagePlaceholderShowsGenerating(t *testing.T) {
	m := sized(t, New(testDeps()))

	msg := &chat.Message{Sender: chat.SenderAI, Placeholder: true}
	out := m.renderMessage(msg)
	if !strings.Contains(out, generatingLabel) {
		t.Errorf("empty placeholder render = %q, want %q", out, generatingLabel)
	}

	// Once tokens arrive the accumulated text replaces the label.
	msg.Content = "partial ans"
	out = m.renderMessage(msg)
	if strings.Contains(out, generatingLabel) || !strings.Contains(out, "partial ans") {
		t.Errorf("streaming placeholder render = %q", out)
	}
}

func TestViewShowsEmptyStateWithoutSelection(t *testing.T) {
	m := sized(t, New(testDeps()))
	m.refreshTranscript()
	if !strings.Contains(m.viewport.View(), "new chat") {
		t.Errorf("empty view = %q", m.viewport.View())
	}
}

func TestTranscriptFollowsStore(t *testing.T) {
	deps := testDeps()
	m := sized(t, New(deps))

	if err := deps.Store.BeginOptimisticTurn("", "what is a goroutine?"); err != nil {
		t.Fatal(err)
	}
	deps.Store.ApplyToken("", "A goroutine is")
	m.refreshTranscript()

	content := m.viewport.View()
	if !strings.Contains(content, "what is a goroutine?") {
		t.Errorf("transcript missing user message: %q", content)
	}
	if !strings.Contains(content, "A goroutine is") {
		t.Errorf("transcript missing streamed content: %q", content)
	}
}

func TestNegativeBalanceBlocksSendVisually(t *testing.T) {
	deps := testDeps()
	deps.Ledger.SetBalance(credits.Assignment{UserID: "u1", ModuleID: "m1"}, -2)
	m := sized(t, New(deps))

	if m.canSend() {
		t.Error("canSend = true with negative balance")
	}
	if !strings.Contains(m.renderStatus(), "negative") {
		t.Errorf("status = %q, want negative-balance warning", m.renderStatus())
	}
}
