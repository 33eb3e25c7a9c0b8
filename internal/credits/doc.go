// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credits tracks the client's view of per-assignment credit
// balances.
//
// The server is the authority on spend; this ledger only mirrors the
// last fetched balance and applies locally observed charges so the UI
// stays honest between refreshes. An unknown balance never blocks a
// send (fail open): only a known negative balance does.
package credits
