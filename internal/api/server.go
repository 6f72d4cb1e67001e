// SPDX-License-Identifier: MIT

// Package api is the HTTP surface of the relay: the JSON endpoints the chat
// UI calls, the prompt stream, file transfer and the operational probes.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/chatrelay/chatrelay/internal/cache"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/files"
	"github.com/chatrelay/chatrelay/internal/health"
	"github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/ratelimit"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

// Upstream is the part of the agent server client the router uses.
type Upstream interface {
	relay.Upstream
	CreateSession(ctx context.Context, req upstream.CreateSessionRequest) (upstream.Session, error)
	ListSessions(ctx context.Context) ([]upstream.Session, error)
	GetSession(ctx context.Context, id string) (upstream.Session, error)
	ListMessages(ctx context.Context, id string) ([]upstream.Message, error)
	ListAgents(ctx context.Context) ([]upstream.Agent, error)
	Health(ctx context.Context) (upstream.Health, error)
}

// Deps are the collaborators the router is built from. Upstream, Relay and
// Files are required.
type Deps struct {
	Upstream Upstream
	Relay    *relay.Relay
	Files    *files.Store
	// Agents caches the agent list; nil disables caching.
	Agents *cache.Loader
	// Health backs /healthz and /readyz; nil serves a manager without checks.
	Health *health.Manager
	// Limiter enables front-door rate limiting when set.
	Limiter *ratelimit.Limiter
}

// Server routes browser requests to the agent server.
type Server struct {
	cfg     config.AppConfig
	up      Upstream
	relay   *relay.Relay
	files   *files.Store
	agents  *cache.Loader
	health  *health.Manager
	limiter *ratelimit.Limiter
	logger  zerolog.Logger

	handler http.Handler
}

// New creates the server and builds its router.
func New(cfg config.AppConfig, deps Deps) (*Server, error) {
	if deps.Upstream == nil {
		return nil, errors.New("api: upstream client is required")
	}
	if deps.Relay == nil {
		return nil, errors.New("api: relay is required")
	}
	if deps.Files == nil {
		return nil, errors.New("api: file store is required")
	}
	hm := deps.Health
	if hm == nil {
		hm = health.NewManager(cfg.Version)
	}

	s := &Server{
		cfg:     cfg,
		up:      deps.Upstream,
		relay:   deps.Relay,
		files:   deps.Files,
		agents:  deps.Agents,
		health:  hm,
		limiter: deps.Limiter,
		logger:  log.WithComponent("api"),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
