// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for portal-tui.
//
// Configuration lives in ~/.portal-tui/config.toml with environment
// variable overrides applied on top, validated before use. A watcher
// built on fsnotify lets the running TUI pick up edits without a
// restart.
package config
