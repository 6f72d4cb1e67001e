// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvListenAddr      = "RELAY_LISTEN"
	EnvLogLevel        = "RELAY_LOG_LEVEL"
	EnvShutdownTimeout = "RELAY_SHUTDOWN_TIMEOUT"
	EnvStaticDir       = "RELAY_STATIC_DIR"
	EnvMetrics         = "RELAY_METRICS"

	EnvUpstreamURL      = "RELAY_UPSTREAM_URL"
	EnvUpstreamUsername = "RELAY_UPSTREAM_USERNAME"
	EnvUpstreamPassword = "RELAY_UPSTREAM_PASSWORD"
	EnvUpstreamTimeout  = "RELAY_UPSTREAM_TIMEOUT"
	EnvBreakerThreshold = "RELAY_UPSTREAM_BREAKER_THRESHOLD"
	EnvBreakerReset     = "RELAY_UPSTREAM_BREAKER_RESET"

	EnvPromptTimeout = "RELAY_PROMPT_TIMEOUT"
	EnvGraceInterval = "RELAY_GRACE_INTERVAL"
	EnvHeartbeat     = "RELAY_HEARTBEAT"

	EnvRateLimitEnabled  = "RELAY_RATELIMIT_ENABLED"
	EnvRateLimitRequests = "RELAY_RATELIMIT_REQUESTS"
	EnvRateLimitWindow   = "RELAY_RATELIMIT_WINDOW"
	EnvRateLimitSweep    = "RELAY_RATELIMIT_SWEEP"
	EnvGlobalRPS         = "RELAY_RATELIMIT_GLOBAL_RPS"
	EnvGlobalBurst       = "RELAY_RATELIMIT_GLOBAL_BURST"
	EnvTrustProxy        = "RELAY_TRUST_PROXY_HEADERS"
	EnvUploadsPerMinute  = "RELAY_UPLOADS_PER_MINUTE"

	EnvAllowedOrigins = "RELAY_ALLOWED_ORIGINS"

	EnvUploadDir      = "RELAY_UPLOAD_DIR"
	EnvOutputDir      = "RELAY_OUTPUT_DIR"
	EnvMaxUploadBytes = "RELAY_MAX_UPLOAD_BYTES"

	EnvAgentCacheTTL = "RELAY_AGENT_CACHE_TTL"
	EnvRedisAddr     = "RELAY_REDIS_ADDR"
	EnvRedisPassword = "RELAY_REDIS_PASSWORD"
	EnvRedisDB       = "RELAY_REDIS_DB"

	EnvTracingEnabled  = "RELAY_TRACING_ENABLED"
	EnvTracingExporter = "RELAY_TRACING_EXPORTER"
	EnvTracingEndpoint = "RELAY_TRACING_ENDPOINT"
	EnvTracingSample   = "RELAY_TRACING_SAMPLE_RATE"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty configPath means
// ENV + defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Path returns the config file path the loader reads, if any.
func (l *Loader) Path() string {
	return l.configPath
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := LoadFile(l.configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("apply config file %s: %w", l.configPath, err)
		}
	}

	mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadFile parses a config file with STRICT parsing. Unknown fields are an
// error. JSON and JSONC files are accepted; comments and trailing commas are
// stripped before decoding.
func LoadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json", ".jsonc":
	default:
		return nil, fmt.Errorf("unsupported config format: %s (yaml, json or jsonc)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	if ext == ".json" || ext == ".jsonc" {
		data = jsonc.ToJSON(data)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.StaticDir, f.StaticDir)
	if f.Metrics != nil {
		cfg.MetricsEnabled = *f.Metrics
	}

	setString(&cfg.Upstream.BaseURL, f.Upstream.BaseURL)
	setString(&cfg.Upstream.Username, f.Upstream.Username)
	setString(&cfg.Upstream.Password, f.Upstream.Password)
	setInt(&cfg.Upstream.BreakerThreshold, f.Upstream.BreakerThreshold)

	setString(&cfg.Files.UploadDir, f.Files.UploadDir)
	setString(&cfg.Files.OutputDir, f.Files.OutputDir)
	if f.Files.MaxUploadBytes != 0 {
		cfg.Files.MaxUploadBytes = f.Files.MaxUploadBytes
	}

	if f.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *f.RateLimit.Enabled
	}
	if f.RateLimit.TrustProxyHeaders != nil {
		cfg.RateLimit.TrustProxyHeaders = *f.RateLimit.TrustProxyHeaders
	}
	setInt(&cfg.RateLimit.Requests, f.RateLimit.Requests)
	setInt(&cfg.RateLimit.GlobalBurst, f.RateLimit.GlobalBurst)
	setInt(&cfg.RateLimit.UploadsPerMinute, f.RateLimit.UploadsPerMinute)
	if f.RateLimit.GlobalRPS != 0 {
		cfg.RateLimit.GlobalRPS = f.RateLimit.GlobalRPS
	}

	if len(f.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = append([]string(nil), f.CORS.AllowedOrigins...)
	}

	setString(&cfg.Cache.RedisAddr, f.Cache.RedisAddr)
	setString(&cfg.Cache.RedisPassword, f.Cache.RedisPassword)
	setInt(&cfg.Cache.RedisDB, f.Cache.RedisDB)

	if f.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *f.Tracing.Enabled
	}
	setString(&cfg.Tracing.Exporter, f.Tracing.Exporter)
	setString(&cfg.Tracing.Endpoint, f.Tracing.Endpoint)
	if f.Tracing.SampleRate != 0 {
		cfg.Tracing.SampleRate = f.Tracing.SampleRate
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"shutdownTimeout", f.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"upstream.timeout", f.Upstream.Timeout, &cfg.Upstream.Timeout},
		{"upstream.breakerReset", f.Upstream.BreakerReset, &cfg.Upstream.BreakerReset},
		{"relay.timeout", f.Relay.Timeout, &cfg.Relay.Timeout},
		{"relay.graceInterval", f.Relay.GraceInterval, &cfg.Relay.GraceInterval},
		{"relay.heartbeat", f.Relay.Heartbeat, &cfg.Relay.Heartbeat},
		{"rateLimit.window", f.RateLimit.Window, &cfg.RateLimit.Window},
		{"rateLimit.sweepInterval", f.RateLimit.SweepInterval, &cfg.RateLimit.SweepInterval},
		{"cache.agentTTL", f.Cache.AgentTTL, &cfg.Cache.AgentTTL},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString(EnvListenAddr, cfg.ListenAddr)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.ShutdownTimeout = ParseDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)
	cfg.StaticDir = ParseString(EnvStaticDir, cfg.StaticDir)
	cfg.MetricsEnabled = ParseBool(EnvMetrics, cfg.MetricsEnabled)

	cfg.Upstream.BaseURL = ParseString(EnvUpstreamURL, cfg.Upstream.BaseURL)
	cfg.Upstream.Username = ParseString(EnvUpstreamUsername, cfg.Upstream.Username)
	cfg.Upstream.Password = ParseString(EnvUpstreamPassword, cfg.Upstream.Password)
	cfg.Upstream.Timeout = ParseDuration(EnvUpstreamTimeout, cfg.Upstream.Timeout)
	cfg.Upstream.BreakerThreshold = ParseInt(EnvBreakerThreshold, cfg.Upstream.BreakerThreshold)
	cfg.Upstream.BreakerReset = ParseDuration(EnvBreakerReset, cfg.Upstream.BreakerReset)

	cfg.Relay.Timeout = ParseDuration(EnvPromptTimeout, cfg.Relay.Timeout)
	cfg.Relay.GraceInterval = ParseDuration(EnvGraceInterval, cfg.Relay.GraceInterval)
	cfg.Relay.Heartbeat = ParseDuration(EnvHeartbeat, cfg.Relay.Heartbeat)

	cfg.RateLimit.Enabled = ParseBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = ParseInt(EnvRateLimitRequests, cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration(EnvRateLimitWindow, cfg.RateLimit.Window)
	cfg.RateLimit.SweepInterval = ParseDuration(EnvRateLimitSweep, cfg.RateLimit.SweepInterval)
	cfg.RateLimit.GlobalRPS = ParseFloat(EnvGlobalRPS, cfg.RateLimit.GlobalRPS)
	cfg.RateLimit.GlobalBurst = ParseInt(EnvGlobalBurst, cfg.RateLimit.GlobalBurst)
	cfg.RateLimit.TrustProxyHeaders = ParseBool(EnvTrustProxy, cfg.RateLimit.TrustProxyHeaders)
	cfg.RateLimit.UploadsPerMinute = ParseInt(EnvUploadsPerMinute, cfg.RateLimit.UploadsPerMinute)

	cfg.CORS.AllowedOrigins = ParseList(EnvAllowedOrigins, cfg.CORS.AllowedOrigins)

	cfg.Files.UploadDir = ParseString(EnvUploadDir, cfg.Files.UploadDir)
	cfg.Files.OutputDir = ParseString(EnvOutputDir, cfg.Files.OutputDir)
	cfg.Files.MaxUploadBytes = ParseInt64(EnvMaxUploadBytes, cfg.Files.MaxUploadBytes)

	cfg.Cache.AgentTTL = ParseDuration(EnvAgentCacheTTL, cfg.Cache.AgentTTL)
	cfg.Cache.RedisAddr = ParseString(EnvRedisAddr, cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString(EnvRedisPassword, cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt(EnvRedisDB, cfg.Cache.RedisDB)

	cfg.Tracing.Enabled = ParseBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = ParseFloat(EnvTracingSample, cfg.Tracing.SampleRate)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
