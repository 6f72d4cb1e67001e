// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad upstream url", func(c *AppConfig) { c.Upstream.BaseURL = "not a url" }, "Upstream.BaseURL"},
		{"zero relay timeout", func(c *AppConfig) { c.Relay.Timeout = 0 }, "Relay.Timeout"},
		{"grace exceeds timeout", func(c *AppConfig) { c.Relay.GraceInterval = 10 * time.Minute }, "Relay.GraceInterval"},
		{"negative heartbeat", func(c *AppConfig) { c.Relay.Heartbeat = -time.Second }, "Relay.Heartbeat"},
		{"bad log level", func(c *AppConfig) { c.LogLevel = "loud" }, "LogLevel"},
		{"password without username", func(c *AppConfig) { c.Upstream.Username = ""; c.Upstream.Password = "x" }, "Upstream.Username"},
		{"bad origin", func(c *AppConfig) { c.CORS.AllowedOrigins = []string{"localhost"} }, "CORS.AllowedOrigins"},
		{"zero requests", func(c *AppConfig) { c.RateLimit.Requests = 0 }, "RateLimit.Requests"},
		{"bad exporter", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "Tracing.Exporter"},
		{"sample rate", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 2 }, "Tracing.SampleRate"},
		{"upload size", func(c *AppConfig) { c.Files.MaxUploadBytes = 0 }, "Files.MaxUploadBytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr))
			var fields []string
			for _, e := range verr.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_RateLimitDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Requests = 0
	assert.NoError(t, Validate(cfg))
}

func TestValidate_WildcardOrigin(t *testing.T) {
	cfg := Defaults()
	cfg.CORS.AllowedOrigins = []string{"*"}
	assert.NoError(t, Validate(cfg))
}
