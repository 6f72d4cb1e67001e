// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "http://127.0.0.1:4096", cfg.Upstream.BaseURL)
	assert.Equal(t, "opencode", cfg.Upstream.Username)
	assert.Equal(t, 5*time.Minute, cfg.Relay.Timeout)
	assert.Equal(t, time.Second, cfg.Relay.GraceInterval)
	assert.Equal(t, 15*time.Second, cfg.Relay.Heartbeat)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
listenAddr: ":8080"
upstream:
  baseURL: "http://agent:4096"
  password: "hunter2"
  timeout: "10s"
relay:
  timeout: "2m"
  graceInterval: "250ms"
cors:
  allowedOrigins: ["http://localhost:5173"]
rateLimit:
  enabled: false
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "http://agent:4096", cfg.Upstream.BaseURL)
	assert.Equal(t, "hunter2", cfg.Upstream.Password)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Relay.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.GraceInterval)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
	// untouched sections keep defaults
	assert.Equal(t, 15*time.Second, cfg.Relay.Heartbeat)
}

func TestLoad_JSONCFile(t *testing.T) {
	path := writeFile(t, "config.jsonc", `{
  // agent server
  "upstream": {
    "baseURL": "https://agent.example.com", /* tls */
  },
  "relay": {"heartbeat": "5s",},
}`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, "https://agent.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Relay.Heartbeat)
}

func TestLoad_YAMLAndJSONCAgree(t *testing.T) {
	yamlPath := writeFile(t, "config.yaml", `
listenAddr: ":9000"
upstream:
  baseURL: "http://agent:4096"
  breakerThreshold: 3
relay:
  graceInterval: "500ms"
cors:
  allowedOrigins: ["http://a.test", "http://b.test"]
`)
	jsoncPath := writeFile(t, "config.jsonc", `{
  "listenAddr": ":9000",
  "upstream": {"baseURL": "http://agent:4096", "breakerThreshold": 3},
  // shorter grace for local work
  "relay": {"graceInterval": "500ms"},
  "cors": {"allowedOrigins": ["http://a.test", "http://b.test"]},
}`)

	fromYAML, err := NewLoader(yamlPath, "dev").Load()
	require.NoError(t, err)
	fromJSONC, err := NewLoader(jsoncPath, "dev").Load()
	require.NoError(t, err)

	if diff := cmp.Diff(fromYAML, fromJSONC); diff != "" {
		t.Errorf("config mismatch (-yaml +jsonc):\n%s", diff)
	}
}

func TestLoadFile_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.yaml", "upstream:\n  baseUrl: http://x\n")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadFile_RejectsUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "config.toml", "listenAddr = ':1'")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, "config.yaml", "")
	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, fc)
}

func TestLoadFile_MultipleDocuments(t *testing.T) {
	path := writeFile(t, "config.yaml", "listenAddr: ':1'\n---\nlistenAddr: ':2'\n")
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoad_BadDurationInFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "relay:\n  timeout: forever\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay.timeout")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "upstream:\n  baseURL: http://from-file:4096\n")
	t.Setenv(EnvUpstreamURL, "http://from-env:4096")
	t.Setenv(EnvGraceInterval, "2s")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:4096", cfg.Upstream.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Relay.GraceInterval)
}

func TestLoad_InvalidConfigFailsValidation(t *testing.T) {
	t.Setenv(EnvUpstreamURL, "ftp://nope")
	_, err := NewLoader("", "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upstream.BaseURL")
}
