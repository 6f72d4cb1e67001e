// SPDX-License-Identifier: MIT

package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/upstream"
)

func TestPrompt_EmptyContentRejectedWithoutUpstreamCall(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"content":""}`, `{"content":"   "}`, `{}`, ``} {
		rec := env.do(t, http.MethodPost, "/api/sessions/ses_1/prompt", strings.NewReader(body), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "content is required", decodeBody[map[string]string](t, rec)["error"])
	}
	assert.Empty(t, env.mock.Prompts())
	assert.Equal(t, 0, env.mock.Subscribers())
}

func TestPrompt_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/sessions/ses_1/prompt", strings.NewReader(`{"content":`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.mock.Prompts())
}

func TestPrompt_StreamsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.mock.OnPrompt(func(sessionID string, _ upstream.PromptRequest) {
		env.mock.PublishEvent(upstream.TypePartUpdated, map[string]any{
			"sessionID": sessionID,
			"delta":     "Hi there",
		})
		env.mock.PublishEvent(upstream.TypeSessionIdle, map[string]any{"sessionID": sessionID})
	})

	srv := httptest.NewServer(env.server)
	t.Cleanup(srv.Close)

	res, err := http.Post(srv.URL+"/api/sessions/ses_http/prompt", "application/json",
		strings.NewReader(`{"content":"hello","agent":"build"}`))
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	assert.Equal(t, "no", res.Header.Get("X-Accel-Buffering"))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	var data []string
	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			data = append(data, line)
		}
	}
	require.NotEmpty(t, data)
	assert.Equal(t, `{"type":"done"}`, data[len(data)-1])
	assert.Contains(t, strings.Join(data, "\n"), `"delta":"Hi there"`)

	prompts := env.mock.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "ses_http", prompts[0].SessionID)
	assert.Equal(t, "build", prompts[0].Request.Agent)
	assert.Equal(t, "hello", prompts[0].Request.Parts[0].Text)
	assert.Eventually(t, func() bool { return env.mock.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
