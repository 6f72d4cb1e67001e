// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

const (
	agentsCacheKey    = "agents"
	maxJSONBodyBytes  = 1 << 20
	maxPromptBodySize = 4 << 20
)

// handleListSessions degrades to an empty list so the UI can still render.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.up.ListSessions(r.Context())
	if err != nil {
		s.logUpstreamFailure(r, "list_sessions", err)
		sessions = []upstream.Session{}
	}
	controlhttp.WriteJSON(w, http.StatusOK, sessions)
}

// Lookup and mutating endpoints surface the upstream error message.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req upstream.CreateSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.up.CreateSession(r.Context(), req)
	if err != nil {
		s.logUpstreamFailure(r, "create_session", err)
		controlhttp.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	controlhttp.WriteJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := log.ContextWithSessionID(r.Context(), id)

	session, err := s.up.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			controlhttp.WriteError(w, r, http.StatusNotFound, "session not found")
			return
		}
		s.logUpstreamFailure(r.WithContext(ctx), "get_session", err)
		controlhttp.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	controlhttp.WriteJSON(w, http.StatusOK, session)
}

// handleListMessages degrades to an empty transcript.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := log.ContextWithSessionID(r.Context(), id)

	msgs, err := s.up.ListMessages(ctx, id)
	if err != nil {
		s.logUpstreamFailure(r.WithContext(ctx), "list_messages", err)
		msgs = []upstream.Message{}
	}
	controlhttp.WriteJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	load := func(ctx context.Context) ([]byte, error) {
		agents, err := s.up.ListAgents(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(agents)
	}

	var (
		body []byte
		err  error
	)
	if s.agents != nil {
		body, err = s.agents.Get(r.Context(), agentsCacheKey, load)
	} else {
		body, err = load(r.Context())
	}
	if err != nil {
		s.logUpstreamFailure(r, "list_agents", err)
		controlhttp.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) logUpstreamFailure(r *http.Request, op string, err error) {
	logger := log.WithContext(r.Context(), s.logger)
	logger.Warn().
		Err(err).
		Str(log.FieldEvent, "upstream.failed").
		Str(log.FieldOperation, op).
		Str("class", upstream.Class(err)).
		Msg("agent server call failed")
}

// decodeOptionalJSON decodes a JSON body when present. An empty body leaves
// v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
