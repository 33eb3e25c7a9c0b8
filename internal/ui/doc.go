// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the full-screen Bubble Tea chat view: a chat
// list sidebar, a transcript viewport, and an input line.
//
// The view is a thin projection of the core engine. All chat state
// lives in chat.Store and all send lifecycle logic in session; the UI
// only issues commands and re-renders on the messages they produce.
// Streaming tokens arrive asynchronously via Program.Send from the
// operation's callbacks.
package ui
