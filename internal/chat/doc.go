// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
//
// Store is the single source of truth for every chat session the UI
// renders, including the one unsaved draft session a user is typing
// into before the server has assigned it an id. All mutation happens
// through the optimistic-turn methods (BeginOptimisticTurn, ApplyToken,
// Finalize, Rollback) so a send either lands completely or leaves no
// trace.
package chat
