// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/morganforge/portal-tui/internal/chat"
	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/credits"
	"github.com/morganforge/portal-tui/internal/portal"
	"github.com/morganforge/portal-tui/internal/session"
)

// App bundles the wired collaborators every command works against.
type App struct {
	Cfg      *config.Config
	Client   *portal.Client
	Store    *chat.Store
	Ledger   *credits.Ledger
	SpendLog *credits.SpendLog
	Registry *session.Registry
}

// NewApp wires an App from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	client, err := portal.NewClient(cfg.Portal.BaseURL)
	if err != nil {
		return nil, err
	}

	var spendLog *credits.SpendLog
	if path, err := cfg.SpendLogPath(); err == nil && path != "" {
		spendLog = credits.NewSpendLog(path)
	}

	store := chat.NewStore()
	ledger := credits.NewLedger(spendLog)

	return &App{
		Cfg:      cfg,
		Client:   client,
		Store:    store,
		Ledger:   ledger,
		SpendLog: spendLog,
		Registry: session.NewRegistry(client, store, ledger),
	}, nil
}

// Assignment returns the configured credit scope.
func (a *App) Assignment() credits.Assignment {
	return credits.Assignment{
		UserID:   a.Cfg.Portal.UserID,
		ModuleID: a.Cfg.Portal.ModuleID,
	}
}

// Target returns the configured send target.
func (a *App) Target() session.Target {
	return session.Target{
		ModuleID: a.Cfg.Portal.ModuleID,
		AgentID:  a.Cfg.Portal.AgentID,
	}
}

// RefreshHistory pulls the chat listing into the store. Agent chats
// have no history endpoint; this is a no-op without a module.
func (a *App) RefreshHistory(ctx context.Context) error {
	if a.Cfg.Portal.ModuleID == "" {
		return nil
	}
	summaries, err := a.Client.GetChatHistory(ctx, a.Cfg.Portal.UserID, a.Cfg.Portal.ModuleID)
	if err != nil {
		return err
	}
	entries := make([]chat.HistoryEntry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, chat.HistoryEntry{
			ID:          s.ChatIDString(),
			Title:       s.Title,
			DateStarted: s.StartedAt(),
		})
	}
	a.Store.ReplaceHistory(entries)
	return nil
}

// RefreshBalance pulls the credit balance into the ledger. Best
// effort: an unknown balance fails open at send time.
func (a *App) RefreshBalance(ctx context.Context) {
	if a.Cfg.Portal.ModuleID == "" {
		return
	}
	if err := a.Ledger.Load(ctx, a.Client, a.Assignment()); err != nil {
		fmt.Fprintf(os.Stderr, "%s could not fetch credit balance: %v\n",
			warningStyle.Render("[warn]"), err)
	}
}

// EnsureLoaded lazily fetches a history chat's messages on first open.
func (a *App) EnsureLoaded(ctx context.Context, chatID string) error {
	if chatID == "" || !a.Store.NeedsLoad(chatID) {
		return nil
	}
	msgs, err := a.Client.GetChatMessages(ctx, chatID)
	if err != nil {
		return err
	}
	stored := make([]chat.StoredMessage, len(msgs))
	for i, m := range msgs {
		stored[i] = chat.StoredMessage{Sender: m.Sender, Content: m.Content}
	}
	return a.Store.SetMessages(chatID, stored)
}
