// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the portal-tui setup tool: a guided first-run
// that writes ~/.portal-tui/config.toml and checks connectivity.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/morganforge/portal-tui/internal/config"
	"github.com/morganforge/portal-tui/internal/portal"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Println("portal-tui-setup: interactive first-run configuration")
			fmt.Println("Writes ~/.portal-tui/config.toml after a few prompts.")
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	in := bufio.NewReader(os.Stdin)

	fmt.Println("portal-tui setup")
	fmt.Println("----------------")
	fmt.Println()

	cfg := config.Default()
	if existing, err := config.Load(); err == nil {
		// Re-running setup edits the current config rather than
		// starting over.
		cfg = existing
	}

	var err error
	cfg.Portal.BaseURL, err = prompt(in, "Portal URL", cfg.Portal.BaseURL)
	if err != nil {
		return err
	}
	cfg.Portal.UserID, err = prompt(in, "Your user id", cfg.Portal.UserID)
	if err != nil {
		return err
	}
	cfg.Portal.ModuleID, err = prompt(in, "Default module id (empty to pick per run)", cfg.Portal.ModuleID)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Connectivity check is advisory; an offline setup still saves.
	if cfg.Portal.BaseURL != "" && cfg.Portal.ModuleID != "" {
		checkConnectivity(cfg)
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	dir, _ := config.ConfigDir()
	fmt.Println()
	fmt.Printf("Saved %s\n", filepath.Join(dir, "config.toml"))
	fmt.Println("Run portal-tui to start chatting.")
	return nil
}

func prompt(in *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func checkConnectivity(cfg *config.Config) {
	client, err := portal.NewClient(cfg.Portal.BaseURL)
	if err != nil {
		fmt.Printf("  warning: %v\n", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := client.ModuleModel(ctx, cfg.Portal.ModuleID)
	switch {
	case err != nil:
		fmt.Printf("  warning: could not reach the portal: %v\n", err)
	case info.Name != "":
		fmt.Printf("  ok: module uses model %s\n", info.Name)
	default:
		fmt.Println("  ok: portal reachable")
	}
}
