// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/upstream"
)

// fakeSubscription is a Subscription fed directly by the test.
type fakeSubscription struct {
	events chan upstream.Event
	err    error
	closes atomic.Int32
}

func newFakeSubscription(buffer int) *fakeSubscription {
	return &fakeSubscription{events: make(chan upstream.Event, buffer)}
}

func (f *fakeSubscription) Events() <-chan upstream.Event { return f.events }
func (f *fakeSubscription) Err() error                    { return f.err }
func (f *fakeSubscription) Close() error {
	f.closes.Add(1)
	return nil
}

// fakeUpstream hands out one prepared subscription and records prompts.
type fakeUpstream struct {
	sub       *fakeSubscription
	subErr    error
	sendErr   error
	subscribe atomic.Int32
	sends     atomic.Int32

	mu      sync.Mutex
	prompts []upstream.PromptRequest

	// subscribed is closed after the first successful Subscribe.
	subscribed chan struct{}
	once       sync.Once
}

func newFakeUpstream(sub *fakeSubscription) *fakeUpstream {
	return &fakeUpstream{sub: sub, subscribed: make(chan struct{})}
}

func (f *fakeUpstream) Subscribe(ctx context.Context) (upstream.Subscription, error) {
	f.subscribe.Add(1)
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.once.Do(func() { close(f.subscribed) })
	return f.sub, nil
}

func (f *fakeUpstream) SendPrompt(ctx context.Context, sessionID string, req upstream.PromptRequest) error {
	f.sends.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()
	return f.sendErr
}

// noFlushWriter is a ResponseWriter without http.Flusher.
type noFlushWriter struct {
	h    http.Header
	code int
	body strings.Builder
}

func (w *noFlushWriter) Header() http.Header {
	if w.h == nil {
		w.h = make(http.Header)
	}
	return w.h
}
func (w *noFlushWriter) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *noFlushWriter) WriteHeader(code int)        { w.code = code }

func mustEvent(t testing.TB, raw string) upstream.Event {
	t.Helper()
	ev, err := upstream.ParseEvent([]byte(raw))
	require.NoError(t, err)
	return ev
}

func partEvent(t testing.TB, sessionID, delta string) upstream.Event {
	return mustEvent(t, envelope(t, upstream.TypePartUpdated, map[string]any{
		"sessionID": sessionID,
		"delta":     delta,
		"part":      map[string]any{"sessionID": sessionID, "type": "text"},
	}))
}

func idleEvent(t testing.TB, sessionID string) upstream.Event {
	return mustEvent(t, envelope(t, upstream.TypeSessionIdle, map[string]any{"sessionID": sessionID}))
}

func errorEvent(t testing.TB, sessionID, message string) upstream.Event {
	return mustEvent(t, envelope(t, upstream.TypeSessionError, map[string]any{
		"sessionID": sessionID,
		"error":     map[string]any{"name": "APIError", "data": map[string]any{"message": message}},
	}))
}

func otherEvent(t testing.TB, eventType, sessionID string) upstream.Event {
	props := map[string]any{}
	if sessionID != "" {
		props["sessionID"] = sessionID
	}
	return mustEvent(t, envelope(t, eventType, props))
}

// malformedEvent builds an event of another session whose other properties
// have shapes the decoder does not expect.
func malformedEvent(t testing.TB, kind int) upstream.Event {
	switch kind {
	case 0:
		return mustEvent(t, envelope(t, upstream.TypePartUpdated, map[string]any{
			"sessionID": "ses_other",
			"delta":     map[string]any{"x": 1},
		}))
	case 1:
		return mustEvent(t, envelope(t, upstream.TypeSessionIdle, map[string]any{
			"sessionID": "ses_other",
			"info":      "not an object",
		}))
	case 2:
		return mustEvent(t, envelope(t, upstream.TypeSessionError, map[string]any{
			"sessionID": "ses_other",
			"error":     "boom",
		}))
	default:
		return mustEvent(t, envelope(t, "message.updated", map[string]any{
			"part": map[string]any{"sessionID": "ses_other", "time": "soon"},
			"info": []int{1},
		}))
	}
}

func envelope(t testing.TB, eventType string, props map[string]any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": eventType, "properties": props})
	require.NoError(t, err)
	return string(b)
}

type frame struct {
	comment bool
	raw     string
	doc     map[string]any
}

func (f frame) typ() string {
	s, _ := f.doc["type"].(string)
	return s
}

func (f frame) sessionID() string {
	props, _ := f.doc["properties"].(map[string]any)
	if s, _ := props["sessionID"].(string); s != "" {
		return s
	}
	for _, key := range []string{"part", "info"} {
		inner, _ := props[key].(map[string]any)
		if s, _ := inner["sessionID"].(string); s != "" {
			return s
		}
	}
	return ""
}

func (f frame) terminal() bool {
	switch f.typ() {
	case TypeDone, TypeError, TypeTimeout:
		_, hasProps := f.doc["properties"]
		return !hasProps
	}
	return false
}

// parseFrames splits an SSE body into frames. Every data frame must be a
// single line of JSON.
func parseFrames(t testing.TB, body string) []frame {
	t.Helper()
	var out []frame
	for _, chunk := range strings.Split(body, "\n\n") {
		if chunk == "" {
			continue
		}
		require.NotContains(t, chunk, "\n", "frame spans lines: %q", chunk)
		if strings.HasPrefix(chunk, ":") {
			out = append(out, frame{comment: true, raw: chunk})
			continue
		}
		payload, ok := strings.CutPrefix(chunk, "data: ")
		require.True(t, ok, "unexpected frame %q", chunk)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &doc), payload)
		out = append(out, frame{raw: payload, doc: doc})
	}
	return out
}

func dataFrames(frames []frame) []frame {
	out := frames[:0:0]
	for _, f := range frames {
		if !f.comment {
			out = append(out, f)
		}
	}
	return out
}

func terminals(frames []frame) []frame {
	var out []frame
	for _, f := range frames {
		if f.terminal() {
			out = append(out, f)
		}
	}
	return out
}
