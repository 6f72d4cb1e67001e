// SPDX-License-Identifier: MIT

package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Terminal event types written to the browser.
const (
	TypeDone    = "done"
	TypeError   = "error"
	TypeTimeout = "timeout"
)

// terminalEvent is the payload of the single closing signal of a stream.
type terminalEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// sseWriter frames payloads as server-sent events and flushes after each
// write. It is owned by the handler goroutine.
type sseWriter struct {
	w   http.ResponseWriter
	f   http.Flusher
	buf bytes.Buffer
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, f: f}, true
}

// open sends the stream headers. Nothing is written to the body.
func (s *sseWriter) open() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.f.Flush()
}

// data writes one "data:" frame. JSON is compacted so the payload always
// fits on a single SSE line.
func (s *sseWriter) data(payload []byte) error {
	s.buf.Reset()
	s.buf.WriteString("data: ")
	if err := json.Compact(&s.buf, payload); err != nil {
		return fmt.Errorf("compact payload: %w", err)
	}
	s.buf.WriteString("\n\n")
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *sseWriter) terminal(eventType, message string) error {
	payload, err := json.Marshal(terminalEvent{Type: eventType, Message: message})
	if err != nil {
		return err
	}
	return s.data(payload)
}

// comment writes an SSE comment line, used as a keepalive.
func (s *sseWriter) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
