// portal-tui - a terminal client for the education portal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/morganforge/portal-tui/internal/cli"
	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/ui"
)

func main() {
	args := cli.NewArgParser(os.Args[1:])

	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	switch args.Subcommand() {
	case "", "tui":
		runErr = runTUI(cfg)
	case "chat":
		runErr = runREPL(cfg)
	case "history":
		runErr = withApp(cfg, func(app *cli.App) error { return cli.RunHistory(app, args) })
	case "credits":
		runErr = withApp(cfg, func(app *cli.App) error { return cli.RunCredits(app, args) })
	case "version":
		runErr = cli.RunVersion()
	case "help":
		runErr = cli.RunHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args.Subcommand())
		cli.RunHelp()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// loadConfig resolves configuration, then layers command-line
// overrides on top of file and environment values.
func loadConfig(args *cli.ArgParser) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := args.Flag("config"); path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if v := args.Flag("module"); v != "" {
		cfg.Portal.ModuleID = v
		cfg.Portal.AgentID = ""
	}
	if v := args.Flag("agent"); v != "" {
		cfg.Portal.AgentID = v
		cfg.Portal.ModuleID = ""
	}
	if v := args.Flag("user"); v != "" {
		cfg.Portal.UserID = v
	}
	if v := args.Flag("url"); v != "" {
		cfg.Portal.BaseURL = v
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

func withApp(cfg *config.Config, fn func(*cli.App) error) error {
	app, err := cli.NewApp(cfg)
	if err != nil {
		return err
	}
	return fn(app)
}

func runREPL(cfg *config.Config) error {
	return withApp(cfg, cli.RunREPL)
}

// runTUI launches the full-screen view. Without a terminal (piped
// output, CI) it falls back to the REPL, which degrades gracefully.
func runTUI(cfg *config.Config) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runREPL(cfg)
	}

	return withApp(cfg, func(app *cli.App) error {
		model := ui.New(ui.Deps{
			Cfg:      cfg,
			Client:   app.Client,
			Store:    app.Store,
			Ledger:   app.Ledger,
			Registry: app.Registry,
		})

		p := tea.NewProgram(model, tea.WithAltScreen())
		ui.SetProgram(p)

		// Live-reload display settings while the TUI runs. Best
		// effort: a watch failure only disables reload.
		if path, err := config.ConfigPath(); err == nil {
			if w, werr := config.NewWatcher(path, config.SetGlobal); werr == nil {
				defer w.Close()
			}
		}

		_, err := p.Run()
		ui.SetProgram(nil)
		return err
	})
}
