// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"bytes"
	"errors"
	"fmt"
)

// =============================================================================
// Frame Decoding
// =============================================================================

// ErrMalformedFrame indicates a frame whose payload was not valid
// JSON. The stream is unrecoverable after this: framing can no longer
// be trusted.
var ErrMalformedFrame = errors.New("malformed stream frame")

// frameDelimiter separates frames on the wire.
var frameDelimiter = []byte("\n\n")

// dataMarker prefixes the payload line inside a frame.
var dataMarker = []byte("data:")

// maxPendingBytes bounds the carry-over buffer. A single frame larger
// than this means the peer is not speaking the protocol.
const maxPendingBytes = 1 << 20

// FrameDecoder incrementally decodes "data: <json>" frames from a
// byte stream delivered in arbitrarily sized chunks.
//
// The decoder buffers bytes, not runes, so a chunk boundary may fall
// inside a multi-byte character without corrupting output. A segment
// that contains no data marker is treated as keep-alive noise and
// skipped. A segment whose payload fails to parse poisons the decoder:
// every subsequent Feed returns the same error.
//
// Decoded events are returned in wire order within and across Feed
// calls. Feeding the same stream one byte at a time or all at once
// yields identical event sequences.
type FrameDecoder struct {
	pending []byte
	err     error
}

// NewFrameDecoder returns a decoder ready to accept chunks.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends chunk to the internal buffer and returns all events
// completed by it. A nil or empty chunk is a no-op.
func (d *FrameDecoder) Feed(chunk []byte) ([]StreamEvent, error) {
	if d.err != nil {
		return nil, d.err
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	d.pending = append(d.pending, chunk...)

	var events []StreamEvent
	for {
		i := bytes.Index(d.pending, frameDelimiter)
		if i < 0 {
			break
		}
		segment := d.pending[:i]
		d.pending = d.pending[i+len(frameDelimiter):]

		ev, ok, err := d.decodeSegment(segment)
		if err != nil {
			d.err = err
			d.pending = nil
			return events, err
		}
		if ok {
			events = append(events, ev)
		}
	}

	if len(d.pending) > maxPendingBytes {
		d.err = fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedFrame, maxPendingBytes)
		d.pending = nil
		return events, d.err
	}

	return events, nil
}

// decodeSegment extracts the payload from one delimited segment.
// ok is false for markerless segments, which are not frames.
func (d *FrameDecoder) decodeSegment(segment []byte) (StreamEvent, bool, error) {
	var payload []byte
	found := false
	for _, line := range bytes.Split(segment, []byte("\n")) {
		if bytes.HasPrefix(line, dataMarker) {
			payload = bytes.TrimSpace(line[len(dataMarker):])
			found = true
			break
		}
	}
	if !found {
		return StreamEvent{}, false, nil
	}

	ev, err := parseEvent(payload)
	if err != nil {
		return StreamEvent{}, false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return ev, true, nil
}

// Pending reports whether undelivered bytes remain buffered. At a
// clean end of stream this is normally false; leftover bytes are an
// incomplete trailing segment and are discarded by convention.
func (d *FrameDecoder) Pending() bool {
	return len(d.pending) > 0
}
