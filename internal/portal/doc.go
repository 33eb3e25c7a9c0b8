// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package portal implements the HTTP transport for the education
// portal backend.
//
// It contains the REST client (send-message plus the read endpoints
// for chat history, messages, enrollment, and module model), the wire
// event types emitted by the streaming send endpoint, and the
// incremental frame decoder that turns raw response chunks into those
// events.
//
// The streaming protocol is SSE-shaped but carried over a plain
// chunked POST response: each frame is a "data: <json>" line followed
// by a blank line. Chunk boundaries are arbitrary and may split
// frames, multi-byte characters, or the delimiter itself; FrameDecoder
// absorbs all of that.
package portal
