// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers used across portal-tui.
//
// The package is intentionally thin: atomic file writes for on-disk
// state (config, spend log) and a few string helpers for terminal
// rendering. Anything with domain meaning lives in its own package.
package util
