// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

type healthOK struct {
	Status   string          `json:"status"`
	Opencode upstream.Health `json:"opencode"`
}

type healthFailed struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleHealth reports the agent server's health as seen through the relay.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.up.Health(r.Context())
	if err != nil {
		s.logUpstreamFailure(r, "health", err)
		controlhttp.WriteJSON(w, http.StatusServiceUnavailable, healthFailed{Status: "error", Message: err.Error()})
		return
	}
	controlhttp.WriteJSON(w, http.StatusOK, healthOK{Status: "ok", Opencode: h})
}
