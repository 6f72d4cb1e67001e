// SPDX-License-Identifier: MIT

package config

import (
	"strings"

	"github.com/chatrelay/chatrelay/internal/validate"
)

// Validate checks a fully merged AppConfig. All problems are reported at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("ListenAddr", cfg.ListenAddr)
	v.LogLevel("LogLevel", cfg.LogLevel)
	v.Positive("ShutdownTimeout", cfg.ShutdownTimeout)

	v.URL("Upstream.BaseURL", cfg.Upstream.BaseURL, []string{"http", "https"})
	v.Positive("Upstream.Timeout", cfg.Upstream.Timeout)
	v.Range("Upstream.BreakerThreshold", cfg.Upstream.BreakerThreshold, 1, 1000)
	v.Positive("Upstream.BreakerReset", cfg.Upstream.BreakerReset)
	if cfg.Upstream.Password != "" && strings.TrimSpace(cfg.Upstream.Username) == "" {
		v.AddError("Upstream.Username", "required when a password is set", cfg.Upstream.Username)
	}

	v.Positive("Relay.Timeout", cfg.Relay.Timeout)
	v.NonNegative("Relay.GraceInterval", cfg.Relay.GraceInterval)
	v.NonNegative("Relay.Heartbeat", cfg.Relay.Heartbeat)
	if cfg.Relay.GraceInterval >= cfg.Relay.Timeout {
		v.AddError("Relay.GraceInterval", "must be shorter than Relay.Timeout", cfg.Relay.GraceInterval.String())
	}

	if cfg.RateLimit.Enabled {
		v.Range("RateLimit.Requests", cfg.RateLimit.Requests, 1, 1_000_000)
		v.Positive("RateLimit.Window", cfg.RateLimit.Window)
		v.Positive("RateLimit.SweepInterval", cfg.RateLimit.SweepInterval)
		if cfg.RateLimit.GlobalRPS < 0 {
			v.AddError("RateLimit.GlobalRPS", "must not be negative", cfg.RateLimit.GlobalRPS)
		}
		if cfg.RateLimit.GlobalRPS > 0 && cfg.RateLimit.GlobalBurst < 1 {
			v.AddError("RateLimit.GlobalBurst", "must be at least 1 when GlobalRPS is set", cfg.RateLimit.GlobalBurst)
		}
		v.Range("RateLimit.UploadsPerMinute", cfg.RateLimit.UploadsPerMinute, 0, 10_000)
	}

	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" {
			continue
		}
		v.URL("CORS.AllowedOrigins", origin, []string{"http", "https"})
	}

	v.NotEmpty("Files.UploadDir", cfg.Files.UploadDir)
	v.NotEmpty("Files.OutputDir", cfg.Files.OutputDir)
	if cfg.Files.MaxUploadBytes <= 0 {
		v.AddError("Files.MaxUploadBytes", "must be positive", cfg.Files.MaxUploadBytes)
	}

	v.NonNegative("Cache.AgentTTL", cfg.Cache.AgentTTL)
	v.Range("Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			v.AddError("Tracing.SampleRate", "must be between 0 and 1", cfg.Tracing.SampleRate)
		}
	}

	return v.Err()
}
