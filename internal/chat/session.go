// Package chat owns the conversation state machine: an append-only message
// log, a single in-flight request at a time, and the classification of every
// outcome into exactly one assistant-authored message.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of the conversation log. Immutable once appended.
// CodePayload carries a reply's standalone SQL, distinct from fenced code
// inside Text.
type Message struct {
	ID          string
	Sender      Sender
	Text        string
	CodePayload string
}

const (
	Greeting       = "Hi! I’m Mika. Ask me anything about your Metabase data."
	noResponseText = "(No response)"
	timeoutText    = "Request timed out. Please try again."
	failureText    = "Sorry, something went wrong."

	// DefaultTimeout bounds one prompt request end to end.
	DefaultTimeout = 40 * time.Second
)

var (
	// ErrNotReady means no backend URL or token is configured.
	ErrNotReady = errors.New("chat session not configured")
	// ErrBusy means a request is already in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrEmptyPrompt means the submitted text was empty or whitespace.
	ErrEmptyPrompt = errors.New("empty prompt")
)

type Session struct {
	client     *http.Client
	backendURL string
	token      string
	timeout    time.Duration

	mu       sync.Mutex
	messages []Message
	pending  bool
}

// NewSession builds a session bound to one backend and token, seeded with the
// greeting. The message log lives and dies with the session instance.
func NewSession(backendURL, token string, client *http.Client, timeout time.Duration) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Session{
		client:     client,
		backendURL: strings.TrimSuffix(strings.TrimSpace(backendURL), "/"),
		token:      token,
		timeout:    timeout,
	}
	s.messages = append(s.messages, Message{
		ID:     uuid.NewString(),
		Sender: SenderAssistant,
		Text:   Greeting,
	})
	return s
}

// Ready reports whether the session holds everything it needs to dispatch.
func (s *Session) Ready() bool {
	return s.backendURL != "" && s.token != ""
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Messages returns a snapshot of the log in append order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// Submit runs one user turn. Empty prompts, an unconfigured session, and an
// in-flight request are all rejected before anything is appended. Once a
// request dispatches, exactly one assistant message is appended no matter how
// the request ends, and pending is cleared before Submit returns.
func (s *Session) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}
	if !s.Ready() {
		return ErrNotReady
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return ErrBusy
	}
	s.pending = true
	s.messages = append(s.messages, Message{
		ID:     uuid.NewString(),
		Sender: SenderUser,
		Text:   text,
	})
	history := make([]Message, len(s.messages))
	copy(history, s.messages)
	s.mu.Unlock()

	slog.Debug("chat state", "transition", "sending", "messages", len(history))

	reply, outcome := s.exchange(ctx, history)

	s.mu.Lock()
	s.messages = append(s.messages, reply)
	s.pending = false
	s.mu.Unlock()

	slog.Debug("chat state", "transition", "idle", "outcome", outcome)
	return nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type promptRequest struct {
	Messages []wireMessage `json:"messages"`
}

type promptResponse struct {
	Reply flexString `json:"reply"`
	SQL   flexString `json:"sql"`
}

// exchange performs the bounded prompt request and always returns the single
// assistant message describing its outcome.
func (s *Session) exchange(ctx context.Context, history []Message) (Message, string) {
	reply := Message{ID: uuid.NewString(), Sender: SenderAssistant}

	payload := promptRequest{Messages: make([]wireMessage, 0, len(history))}
	for _, m := range history {
		role := "assistant"
		if m.Sender == SenderUser {
			role = "user"
		}
		payload.Messages = append(payload.Messages, wireMessage{Role: role, Content: m.Text})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		reply.Text = failureText
		return reply, "network_error"
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.backendURL+"/ai/prompt", bytes.NewReader(body))
	if err != nil {
		reply.Text = failureText
		return reply, "network_error"
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reply.Text = timeoutText
			return reply, "timeout"
		}
		reply.Text = failureText
		return reply, "network_error"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reply.Text = fmt.Sprintf("Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return reply, "http_error"
	}

	var decoded promptResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reply.Text = timeoutText
			return reply, "timeout"
		}
		reply.Text = failureText
		return reply, "network_error"
	}

	reply.Text = string(decoded.Reply)
	if reply.Text == "" {
		reply.Text = noResponseText
	}
	if sql := strings.TrimSpace(string(decoded.SQL)); sql != "" {
		reply.CodePayload = string(decoded.SQL)
	}
	return reply, "success"
}

// flexString decodes a JSON value that should be a string but is flattened to
// its JSON text when the backend sends something structural instead.
type flexString string

func (f *flexString) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	if string(raw) == "null" {
		*f = ""
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		*f = flexString(raw)
		return nil
	}
	*f = flexString(compact.String())
	return nil
}
