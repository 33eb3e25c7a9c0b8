// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithStreamingClient(srv.Client()),
		WithSendRate(rate.NewLimiter(rate.Inf, 1)),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("   "); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("err = %v, want ErrNoBaseURL", err)
	}
}

func TestOpenStreamSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/send-message" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"chat_id":"9","user_id":"u1","module_id":"m1","message":"hi"}` {
			t.Errorf("body = %s", body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"done\",\"chat_id\":9,\"final\":\"hello\"}\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	body, err := c.OpenStream(context.Background(), SendRequest{
		ChatID:   "9",
		UserID:   "u1",
		ModuleID: "m1",
		Message:  "hi",
	})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty stream body")
	}
}

func TestOpenStreamOmitsEmptyChatID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"user_id":"u1","module_id":"m1","message":"first"}` {
			t.Errorf("body = %s", body)
		}
		io.WriteString(w, "data: {\"type\":\"done\",\"chat_id\":1,\"final\":\"ok\"}\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	body, err := c.OpenStream(context.Background(), SendRequest{
		UserID:   "u1",
		ModuleID: "m1",
		Message:  "first",
	})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	body.Close()
}

func TestOpenStreamTargetValidation(t *testing.T) {
	c, err := NewClient("http://localhost:1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	tests := []struct {
		name string
		req  SendRequest
	}{
		{"neither", SendRequest{UserID: "u", Message: "x"}},
		{"both", SendRequest{UserID: "u", ModuleID: "m", AgentID: "a", Message: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.OpenStream(context.Background(), tt.req); !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("err = %v, want ErrInvalidTarget", err)
			}
		})
	}
}

func TestOpenStreamNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"not enrolled"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.OpenStream(context.Background(), SendRequest{UserID: "u1", ModuleID: "m1", Message: "hi"})

	var pe *PortalError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PortalError", err)
	}
	if pe.Status != http.StatusForbidden || pe.Message != "not enrolled" {
		t.Errorf("PortalError = %+v", pe)
	}
}

func TestGetChatHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get-chat-history/u1/m1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		// Verbatim server shape: the id is historyID, the title is
		// chatlog, and dateStarted is a bare ISO timestamp.
		io.WriteString(w, `[{"historyID":3,"assignmentID":1,"chatlog":"Recursion help","dateStarted":"2025-03-01T10:00:00"},{"historyID":"4","assignmentID":1,"chatlog":"Exam prep","dateStarted":"2025-03-02T09:30:00"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	chats, err := c.GetChatHistory(context.Background(), "u1", "m1")
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	// Numeric and string ids both normalize.
	if chats[0].ChatIDString() != "3" || chats[1].ChatIDString() != "4" {
		t.Errorf("ids = %q, %q", chats[0].ChatIDString(), chats[1].ChatIDString())
	}
	if chats[1].Title != "Exam prep" {
		t.Errorf("title = %q", chats[1].Title)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !chats[0].StartedAt().Equal(want) {
		t.Errorf("StartedAt = %v, want %v", chats[0].StartedAt(), want)
	}
}

func TestChatSummaryStartedAt(t *testing.T) {
	tests := []struct {
		raw  string
		zero bool
	}{
		{"2025-03-01T10:00:00", false},
		{"2025-03-01T10:00:00Z", false},
		{"2025-03-01T10:00:00+02:00", false},
		{"", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		s := ChatSummary{DateStarted: tt.raw}
		if got := s.StartedAt().IsZero(); got != tt.zero {
			t.Errorf("StartedAt(%q).IsZero() = %v, want %v", tt.raw, got, tt.zero)
		}
	}
}

func TestStudentsInModule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/students-in-module/m1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `[{"userID":"u1","name":"Ada","studentCredits":12.5},{"userID":"u2","name":"Lin","studentCredits":-0.4}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	students, err := c.StudentsInModule(context.Background(), "m1")
	if err != nil {
		t.Fatalf("StudentsInModule: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("got %d students", len(students))
	}
	if students[1].Credits != -0.4 {
		t.Errorf("credits = %v", students[1].Credits)
	}
}

func TestGetChatMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get-chat-message/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `[{"sender":"user","content":"hi"},{"sender":"ai","content":"hello!"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	msgs, err := c.GetChatMessages(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetChatMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Sender != "ai" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestModuleModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"model_name":"gpt-4o-mini"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	info, err := c.ModuleModel(context.Background(), "m1")
	if err != nil {
		t.Fatalf("ModuleModel: %v", err)
	}
	if info.Name != "gpt-4o-mini" {
		t.Errorf("info = %+v", info)
	}
}

func TestGetJSONNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"no such chat"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetChatMessages(context.Background(), "999")

	var pe *PortalError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PortalError", err)
	}
	if pe.Status != http.StatusNotFound || pe.Message != "no such chat" {
		t.Errorf("PortalError = %+v", pe)
	}
}
