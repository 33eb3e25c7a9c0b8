// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoBaseURL indicates the client was constructed without a
	// backend address.
	ErrNoBaseURL = errors.New("portal base URL not configured")

	// ErrInvalidTarget indicates a send request that names neither or
	// both of module and agent.
	ErrInvalidTarget = errors.New("send target must be exactly one of module or agent")
)

// PortalError is a non-2xx response from the backend.
type PortalError struct {
	Status  int
	Message string
}

func (e *PortalError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal: HTTP %d", e.Status)
	}
	return fmt.Sprintf("portal: HTTP %d: %s", e.Status, e.Message)
}

// Is allows errors.Is matching against another *PortalError with the
// same status.
func (e *PortalError) Is(target error) bool {
	var pe *PortalError
	if errors.As(target, &pe) {
		return pe.Status == e.Status
	}
	return false
}

// =============================================================================
// Shared HTTP Clients
// =============================================================================

// PERFORMANCE: both clients share pooled transports so repeated calls
// reuse connections instead of paying TLS setup per request. The
// streaming client carries no overall timeout because a chat response
// legitimately stays open for minutes; cancellation is the caller's
// context.
var (
	sharedHTTPClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// Client
// =============================================================================

// Transport opens a raw response stream for a send request. It exists
// as an interface so the session engine can be tested against scripted
// streams without a network.
type Transport interface {
	OpenStream(ctx context.Context, req SendRequest) (io.ReadCloser, error)
}

// SendRequest is the payload for POST /api/send-message. ChatID is
// empty for the first message of a new chat; the server then creates
// the chat and reports its id in the done event. Exactly one of
// ModuleID and AgentID must be set.
type SendRequest struct {
	ChatID   string `json:"chat_id,omitempty"`
	UserID   string `json:"user_id"`
	ModuleID string `json:"module_id,omitempty"`
	AgentID  string `json:"agent_id,omitempty"`
	Message  string `json:"message"`
}

// Client talks to the education portal backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	streamer   *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the pooled client used for plain REST
// calls. Intended for tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithStreamingClient overrides the client used for the streaming
// send endpoint. Intended for tests.
func WithStreamingClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.streamer = c }
}

// WithSendRate caps outbound send requests. The default allows one
// send per second with a small burst, which is well above what a
// single interactive user produces.
func WithSendRate(l *rate.Limiter) ClientOption {
	return func(cl *Client) { cl.limiter = l }
}

// NewClient returns a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: sharedHTTPClient,
		streamer:   sharedStreamingClient,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OpenStream sends a chat message and returns the raw streaming
// response body. The caller owns the body and must close it. A non-2xx
// status is returned as *PortalError with the body drained for its
// message.
func (c *Client) OpenStream(ctx context.Context, req SendRequest) (io.ReadCloser, error) {
	if (req.ModuleID == "") == (req.AgentID == "") {
		return nil, ErrInvalidTarget
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/send-message", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamer.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readPortalError(resp)
	}
	return resp.Body, nil
}

// readPortalError drains a failed response into a *PortalError. The
// body is capped; an error page is not worth unbounded memory.
func readPortalError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))

	// The backend usually reports {"error": "..."}.
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &wire) == nil {
		if wire.Error != "" {
			msg = wire.Error
		} else if wire.Message != "" {
			msg = wire.Message
		}
	}
	return &PortalError{Status: resp.StatusCode, Message: msg}
}

// =============================================================================
// Read Endpoints
// =============================================================================

// ChatSummary is one entry from the chat history listing. The server
// names the chat id historyID and its title chatlog.
type ChatSummary struct {
	ID          flexID `json:"historyID"`
	Title       string `json:"chatlog"`
	DateStarted string `json:"dateStarted"`
}

// ChatIDString returns the chat id normalized to a string.
func (s ChatSummary) ChatIDString() string { return string(s.ID) }

// StartedAt parses the chat's start time. The server emits a bare
// ISO timestamp with no zone; RFC 3339 is accepted too. Returns the
// zero time when the field is absent or unparseable.
func (s ChatSummary) StartedAt() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s.DateStarted); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ChatMessage is one stored message from get-chat-message.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Enrollment is one student row from students-in-module.
type Enrollment struct {
	UserID  flexID  `json:"userID"`
	Name    string  `json:"name"`
	Credits float64 `json:"studentCredits"`
}

// ModelInfo describes the LLM assigned to a module.
type ModelInfo struct {
	Name string `json:"model_name"`
}

// GetChatHistory lists the user's chats within a module, newest first
// as ordered by the server.
func (c *Client) GetChatHistory(ctx context.Context, userID, moduleID string) ([]ChatSummary, error) {
	var out []ChatSummary
	path := fmt.Sprintf("/api/get-chat-history/%s/%s", userID, moduleID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChatMessages fetches the full message list for one chat.
func (c *Client) GetChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	var out []ChatMessage
	if err := c.getJSON(ctx, "/api/get-chat-message/"+chatID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StudentsInModule lists enrollments for a module, including per
// student credit balances.
func (c *Client) StudentsInModule(ctx context.Context, moduleID string) ([]Enrollment, error) {
	var out []Enrollment
	if err := c.getJSON(ctx, "/api/students-in-module/"+moduleID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrNotEnrolled indicates the user does not appear in the module's
// enrollment listing.
var ErrNotEnrolled = errors.New("portal: user not enrolled in module")

// StudentBalance resolves one user's credit balance from the module's
// enrollment listing. The backend exposes no per-student endpoint, so
// this scans students-in-module.
func (c *Client) StudentBalance(ctx context.Context, userID, moduleID string) (float64, error) {
	students, err := c.StudentsInModule(ctx, moduleID)
	if err != nil {
		return 0, err
	}
	for _, s := range students {
		if string(s.UserID) == userID {
			return s.Credits, nil
		}
	}
	return 0, ErrNotEnrolled
}

// ModuleModel fetches the model assigned to a module.
func (c *Client) ModuleModel(ctx context.Context, moduleID string) (ModelInfo, error) {
	var out ModelInfo
	if err := c.getJSON(ctx, "/api/get-module-model/"+moduleID, &out); err != nil {
		return ModelInfo{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readPortalError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
