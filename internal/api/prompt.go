// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/relay"
)

type promptBody struct {
	Content string `json:"content"`
	Agent   string `json:"agent,omitempty"`
}

// handlePrompt streams the agent's answer to one prompt as server-sent
// events. Input errors are plain JSON responses; once the stream is open
// every outcome is reported in-band by the relay.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	err := json.NewDecoder(io.LimitReader(r.Body, maxPromptBodySize)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err = s.relay.Serve(w, r, relay.Request{
		SessionID: chi.URLParam(r, "id"),
		Content:   body.Content,
		Agent:     body.Agent,
	})
	switch {
	case errors.Is(err, relay.ErrEmptyContent):
		controlhttp.WriteError(w, r, http.StatusBadRequest, "content is required")
	case errors.Is(err, relay.ErrStreamingUnsupported):
		controlhttp.WriteError(w, r, http.StatusInternalServerError, "streaming unsupported")
	}
}
