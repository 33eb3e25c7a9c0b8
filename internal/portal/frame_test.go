// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"errors"
	"reflect"
	"testing"
)

// feedAll runs a stream through a fresh decoder in chunks of size n
// and collects every event.
func feedAll(t *testing.T, stream []byte, n int) []StreamEvent {
	t.Helper()
	d := NewFrameDecoder()
	var events []StreamEvent
	for i := 0; i < len(stream); i += n {
		end := i + n
		if end > len(stream) {
			end = len(stream)
		}
		evs, err := d.Feed(stream[i:end])
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		events = append(events, evs...)
	}
	return events
}

func TestFrameDecoderBasicSequence(t *testing.T) {
	stream := []byte(
		"data: {\"type\":\"token\",\"data\":\"Hel\"}\n\n" +
			"data: {\"type\":\"token\",\"data\":\"lo\"}\n\n" +
			"data: {\"type\":\"done\",\"chat_id\":42,\"final\":\"Hello\",\"cost\":0.002}\n\n")

	events := feedAll(t, stream, len(stream))

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != EventToken || events[0].Data != "Hel" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != EventToken || events[1].Data != "lo" {
		t.Errorf("event 1 = %+v", events[1])
	}
	done := events[2]
	if done.Type != EventDone || done.ChatID != "42" || done.Final != "Hello" {
		t.Errorf("done = %+v", done)
	}
	if done.Cost == nil || *done.Cost != 0.002 {
		t.Errorf("done.Cost = %v, want 0.002", done.Cost)
	}
}

func TestFrameDecoderChunkBoundaryInvariance(t *testing.T) {
	// Multi-byte content ensures byte-level splits land inside runes.
	stream := []byte(
		"data: {\"type\":\"token\",\"data\":\"héllo wörld\"}\n\n" +
			"data: {\"type\":\"token\",\"data\":\" café\"}\n\n" +
			"data: {\"type\":\"done\",\"chat_id\":\"7\",\"chat_title\":\"Greetings\",\"final\":\"héllo wörld café\"}\n\n")

	want := feedAll(t, stream, len(stream))

	for _, n := range []int{1, 2, 3, 5, 7, 16} {
		got := feedAll(t, stream, n)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: events diverge from whole-stream decode\ngot:  %+v\nwant: %+v", n, got, want)
		}
	}
}

func TestFrameDecoderSkipsMarkerlessSegments(t *testing.T) {
	stream := []byte(
		": keep-alive\n\n" +
			"\n\n" +
			"data: {\"type\":\"token\",\"data\":\"x\"}\n\n" +
			"retry: 3000\n\n")

	events := feedAll(t, stream, len(stream))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].Data != "x" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFrameDecoderMalformedPayloadIsFatal(t *testing.T) {
	d := NewFrameDecoder()

	evs, err := d.Feed([]byte("data: {\"type\":\"token\",\"data\":\"ok\"}\n\ndata: {not json\n\n"))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	// Events completed before the bad frame are still delivered.
	if len(evs) != 1 || evs[0].Data != "ok" {
		t.Errorf("events before failure = %+v", evs)
	}

	// Decoder is poisoned: further feeds fail the same way.
	if _, err := d.Feed([]byte("data: {\"type\":\"token\",\"data\":\"late\"}\n\n")); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("post-failure Feed err = %v, want ErrMalformedFrame", err)
	}
}

func TestFrameDecoderUnknownEventTypeIsFatal(t *testing.T) {
	d := NewFrameDecoder()
	_, err := d.Feed([]byte("data: {\"type\":\"heartbeat\"}\n\n"))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestFrameDecoderTrailingIncompleteSegment(t *testing.T) {
	d := NewFrameDecoder()

	evs, err := d.Feed([]byte("data: {\"type\":\"token\",\"data\":\"a\"}\n\ndata: {\"type\":\"to"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if !d.Pending() {
		t.Error("Pending() = false, want true for incomplete trailing segment")
	}

	// Completing the frame later emits it.
	evs, err = d.Feed([]byte("ken\",\"data\":\"b\"}\n\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(evs) != 1 || evs[0].Data != "b" {
		t.Errorf("completed event = %+v", evs)
	}
	if d.Pending() {
		t.Error("Pending() = true after all frames complete")
	}
}

func TestFrameDecoderErrorEvent(t *testing.T) {
	events := feedAll(t, []byte("data: {\"type\":\"error\",\"message\":\"model unavailable\"}\n\n"), 4)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventError || events[0].Message != "model unavailable" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFrameDecoderCostAbsentVsZero(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		nilCost bool
		cost    float64
	}{
		{"absent", `{"type":"done","chat_id":1,"final":"x"}`, true, 0},
		{"zero", `{"type":"done","chat_id":1,"final":"x","cost":0}`, false, 0},
		{"nonzero", `{"type":"done","chat_id":1,"final":"x","cost":0.01}`, false, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := feedAll(t, []byte("data: "+tt.payload+"\n\n"), 1024)
			if len(events) != 1 {
				t.Fatalf("got %d events", len(events))
			}
			ev := events[0]
			if tt.nilCost {
				if ev.Cost != nil {
					t.Errorf("Cost = %v, want nil", *ev.Cost)
				}
			} else if ev.Cost == nil || *ev.Cost != tt.cost {
				t.Errorf("Cost = %v, want %v", ev.Cost, tt.cost)
			}
		})
	}
}
