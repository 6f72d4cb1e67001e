// SPDX-License-Identifier: MIT

package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// RecordedPrompt is a prompt submission seen by the MockServer.
type RecordedPrompt struct {
	SessionID string
	Request   PromptRequest
}

// MockServer is an in-process agent server for tests. It serves the session,
// agent, health, prompt and event-feed endpoints and lets tests publish feed
// events to every connected subscriber.
type MockServer struct {
	*httptest.Server

	mu          sync.Mutex
	sessions    map[string]json.RawMessage
	order       []string
	messages    map[string][]json.RawMessage
	agents      []json.RawMessage
	healthy     bool
	failures    map[string]int // endpoint -> HTTP status to return
	prompts     []RecordedPrompt
	onPrompt    func(sessionID string, req PromptRequest)
	promptDelay time.Duration
	user, pass  string
	subscribers map[chan []byte]struct{}
	subscribed  chan struct{}
	dropFeeds   chan struct{}
	nextID      int
}

// Endpoint names accepted by Fail.
const (
	EndpointCreateSession = "create_session"
	EndpointListSessions  = "list_sessions"
	EndpointGetSession    = "get_session"
	EndpointListMessages  = "list_messages"
	EndpointListAgents    = "list_agents"
	EndpointHealth        = "health"
	EndpointPrompt        = "send_prompt"
	EndpointEvent         = "event"
)

// NewMockServer starts a mock agent server with one "build" agent.
func NewMockServer() *MockServer {
	m := &MockServer{
		sessions:    make(map[string]json.RawMessage),
		messages:    make(map[string][]json.RawMessage),
		agents:      []json.RawMessage{json.RawMessage(`{"name":"build","description":"default agent","mode":"primary"}`)},
		healthy:     true,
		failures:    make(map[string]int),
		subscribers: make(map[chan []byte]struct{}),
		subscribed:  make(chan struct{}, 128),
		dropFeeds:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", m.guard(EndpointCreateSession, m.handleCreateSession))
	mux.HandleFunc("GET /session", m.guard(EndpointListSessions, m.handleListSessions))
	mux.HandleFunc("GET /session/{id}", m.guard(EndpointGetSession, m.handleGetSession))
	mux.HandleFunc("GET /session/{id}/message", m.guard(EndpointListMessages, m.handleListMessages))
	mux.HandleFunc("POST /session/{id}/prompt_async", m.guard(EndpointPrompt, m.handlePrompt))
	mux.HandleFunc("GET /agent", m.guard(EndpointListAgents, m.handleAgents))
	mux.HandleFunc("GET /global/health", m.guard(EndpointHealth, m.handleHealth))
	mux.HandleFunc("GET /event", m.guard(EndpointEvent, m.handleEvent))

	m.Server = httptest.NewServer(mux)
	return m
}

// AddSession registers a session and returns its raw document.
func (m *MockServer) AddSession(id, title string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addSessionLocked(id, title)
}

func (m *MockServer) addSessionLocked(id, title string) json.RawMessage {
	now := time.Now().UnixMilli()
	doc, _ := json.Marshal(map[string]any{
		"id":    id,
		"title": title,
		"time":  map[string]int64{"created": now, "updated": now},
	})
	if _, ok := m.sessions[id]; !ok {
		m.order = append(m.order, id)
	}
	m.sessions[id] = doc
	return doc
}

// SetMessages replaces the transcript of a session.
func (m *MockServer) SetMessages(sessionID string, msgs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw := make([]json.RawMessage, 0, len(msgs))
	for _, s := range msgs {
		raw = append(raw, json.RawMessage(s))
	}
	m.messages[sessionID] = raw
}

// SetAgents replaces the agent list with raw JSON documents.
func (m *MockServer) SetAgents(agents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = m.agents[:0]
	for _, a := range agents {
		m.agents = append(m.agents, json.RawMessage(a))
	}
}

// SetHealthy controls the "healthy" flag of the health endpoint.
func (m *MockServer) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

// Fail makes endpoint answer with status until Recover is called.
func (m *MockServer) Fail(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpoint] = status
}

// Recover clears a failure set with Fail.
func (m *MockServer) Recover(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, endpoint)
}

// RequireBasicAuth makes every endpoint demand the given credentials.
func (m *MockServer) RequireBasicAuth(user, pass string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user, m.pass = user, pass
}

// OnPrompt installs a hook run (in its own goroutine) after each accepted
// prompt. Tests use it to script the feed.
func (m *MockServer) OnPrompt(fn func(sessionID string, req PromptRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPrompt = fn
}

// SetPromptDelay delays the prompt acknowledgement.
func (m *MockServer) SetPromptDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptDelay = d
}

// Prompts returns the prompts received so far.
func (m *MockServer) Prompts() []RecordedPrompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedPrompt(nil), m.prompts...)
}

// Subscribers returns the number of connected event-feed clients.
func (m *MockServer) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// WaitSubscribed blocks until a feed client has connected or the timeout
// elapses. Each connection satisfies exactly one wait.
func (m *MockServer) WaitSubscribed(timeout time.Duration) bool {
	select {
	case <-m.subscribed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Publish sends one raw JSON event to every connected feed client.
func (m *MockServer) Publish(raw string) {
	m.mu.Lock()
	subs := make([]chan []byte, 0, len(m.subscribers))
	for ch := range m.subscribers {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- []byte(raw):
		case <-time.After(time.Second):
		}
	}
}

// PublishEvent marshals a {type, properties} envelope and publishes it.
func (m *MockServer) PublishEvent(eventType string, properties map[string]any) {
	doc, _ := json.Marshal(map[string]any{"type": eventType, "properties": properties})
	m.Publish(string(doc))
}

// DropFeeds ends every open event-feed response.
func (m *MockServer) DropFeeds() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.dropFeeds)
	m.dropFeeds = make(chan struct{})
}

func (m *MockServer) guard(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status, failing := m.failures[endpoint]
		user, pass := m.user, m.pass
		m.mu.Unlock()

		if pass != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if failing {
			http.Error(w, fmt.Sprintf("mock failure for %s", endpoint), status)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (m *MockServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("ses_mock%04d", m.nextID)
	doc := m.addSessionLocked(id, req.Title)
	m.mu.Unlock()

	writeJSON(w, doc)
}

func (m *MockServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	out := make([]json.RawMessage, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	m.mu.Unlock()
	writeJSON(w, out)
}

func (m *MockServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	doc, ok := m.sessions[r.PathValue("id")]
	m.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, doc)
}

func (m *MockServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	msgs := append([]json.RawMessage{}, m.messages[r.PathValue("id")]...)
	m.mu.Unlock()
	writeJSON(w, msgs)
}

func (m *MockServer) handleAgents(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	out := append([]json.RawMessage{}, m.agents...)
	m.mu.Unlock()
	writeJSON(w, out)
}

func (m *MockServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	healthy := m.healthy
	m.mu.Unlock()
	writeJSON(w, Health{Healthy: healthy, Version: "mock"})
}

func (m *MockServer) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Parts) == 0 {
		http.Error(w, "bad prompt", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	m.mu.Lock()
	m.prompts = append(m.prompts, RecordedPrompt{SessionID: id, Request: req})
	hook := m.onPrompt
	delay := m.promptDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
	if hook != nil {
		go hook(id, req)
	}
}

func (m *MockServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan []byte, 256)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	drop := m.dropFeeds
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.subscribers, ch)
		m.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "data: {\"type\":\"server.connected\",\"properties\":{}}\n\n")
	flusher.Flush()

	select {
	case m.subscribed <- struct{}{}:
	default:
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-drop:
			return
		case data := <-ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
