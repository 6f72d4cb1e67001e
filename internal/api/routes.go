// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/control/middleware"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:     true,
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,

		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		TrustProxy:            s.cfg.RateLimit.TrustProxyHeaders,

		EnableMetrics:  s.cfg.MetricsEnabled,
		TracingService: tracingService(s.cfg.Tracing.Enabled),
		EnableLogging:  true,
	})

	s.registerPublicRoutes(r)
	r.Route("/api", s.registerAPIRoutes)
	s.registerUIRoutes(r)
	return r
}

func tracingService(enabled bool) string {
	if !enabled {
		return ""
	}
	return "chatrelay/api"
}

// registerPublicRoutes mounts probes and metrics. They bypass rate limiting
// so orchestrators never see a 429.
func (s *Server) registerPublicRoutes(r chi.Router) {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
}

func (s *Server) registerAPIRoutes(r chi.Router) {
	if s.limiter != nil {
		r.Use(middleware.ClientRateLimit(s.limiter, s.cfg.RateLimit.TrustProxyHeaders))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/agents", s.handleListAgents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Get("/{id}", s.handleGetSession)
		r.Get("/{id}/messages", s.handleListMessages)
		r.Post("/{id}/prompt", s.handlePrompt)
	})

	r.With(middleware.UploadLimit(s.cfg.RateLimit.UploadsPerMinute, s.cfg.RateLimit.TrustProxyHeaders)).
		Post("/upload", s.handleUpload)
	r.Get("/files", s.handleListFiles)
	r.Get("/files/{category}/{filename}", s.handleDownload)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		controlhttp.WriteError(w, r, http.StatusNotFound, "not found")
	})
}

func (s *Server) registerUIRoutes(r chi.Router) {
	if s.cfg.StaticDir == "" {
		return
	}
	r.Handle("/*", controlhttp.UIHandler(controlhttp.UIConfig{
		Dir: s.cfg.StaticDir,
		CSP: middleware.DefaultCSP,
	}))
}
