// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the command-line surface of portal-tui: the
// argument parser, the plain-terminal REPL chat mode, and the small
// non-interactive commands (history, credits, version).
package cli
