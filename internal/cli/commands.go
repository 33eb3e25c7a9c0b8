// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/morganforge/portal-tui/internal/util"
)

// Version is the release version, stamped at build time via
// -ldflags "-X github.com/morganforge/portal-tui/internal/cli.Version=...".
var Version = "dev"

// RunVersion prints version information.
func RunVersion() error {
	fmt.Printf("portal-tui %s\n", Version)
	return nil
}

// RunHistory lists the user's chats in the configured module.
func RunHistory(app *App, args *ArgParser) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.RefreshHistory(ctx); err != nil {
		return err
	}
	sessions := app.Store.Sessions()
	if len(sessions) == 0 {
		fmt.Println("no chats yet")
		return nil
	}

	limit := args.IntFlag("limit", len(sessions))
	for i, s := range sessions {
		if i >= limit {
			break
		}
		date := ""
		if !s.DateStarted.IsZero() {
			date = s.DateStarted.Format("2006-01-02")
		}
		fmt.Printf("%-10s %-12s %s\n", s.ID, date, util.TruncateRunes(s.Title, 60))
	}
	return nil
}

// RunCredits prints the current balance and recent observed charges.
func RunCredits(app *App, args *ArgParser) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Ledger.Load(ctx, app.Client, app.Assignment()); err != nil {
		fmt.Fprintf(os.Stderr, "%s could not fetch balance: %v\n",
			warningStyle.Render("[warn]"), err)
	}

	if bal, ok := app.Ledger.Balance(app.Assignment()); ok {
		fmt.Println("balance: " + util.FormatFloat(bal, 4))
		if bal < 0 {
			fmt.Println(warningStyle.Render("balance is negative; sending is disabled"))
		}
	} else {
		fmt.Println("balance unknown")
	}

	if app.SpendLog == nil {
		return nil
	}
	records := app.SpendLog.Recent(args.IntFlag("limit", 10))
	if len(records) == 0 {
		return nil
	}
	fmt.Println("\nrecent charges:")
	for _, r := range records {
		fmt.Printf("  %s  chat %-8s %s\n",
			r.At.Format("2006-01-02 15:04"), r.ChatID, util.FormatFloat(r.Cost, 6))
	}
	fmt.Printf("total observed: %s\n", util.FormatFloat(app.SpendLog.Total(app.Assignment()), 6))
	return nil
}

// RunHelp prints command usage.
func RunHelp() error {
	fmt.Print(`portal-tui - terminal client for the education portal

Usage:
  portal-tui [flags]            launch the full-screen TUI
  portal-tui chat [flags]       plain-terminal REPL chat
  portal-tui history [--limit n]
  portal-tui credits [--limit n]
  portal-tui version
  portal-tui help

Flags:
  --config path      use an alternate config file
  --module id        override the configured module
  --agent id         chat with a marketplace agent instead
  --user id          override the configured user

Configuration lives at ~/.portal-tui/config.toml and environment
variables PORTAL_TUI_BASE_URL, PORTAL_TUI_USER_ID, PORTAL_TUI_MODULE_ID,
PORTAL_TUI_AGENT_ID, PORTAL_TUI_THEME override it.
`)
	return nil
}
