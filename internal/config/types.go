// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	ListenAddr string
	LogLevel   string
	LogService string

	// ShutdownTimeout bounds graceful HTTP shutdown. Open prompt streams are
	// cut when it expires.
	ShutdownTimeout time.Duration

	Upstream  UpstreamConfig
	Relay     RelayConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Files     FilesConfig
	Cache     CacheConfig
	Tracing   TracingConfig

	// StaticDir, when set, is served at "/" (the browser chat UI).
	StaticDir      string
	MetricsEnabled bool
}

// UpstreamConfig describes how to reach the agent server.
type UpstreamConfig struct {
	BaseURL string
	// Username/Password enable HTTP basic auth on every upstream call.
	// Auth is only sent when Password is non-empty.
	Username string
	Password string
	// Timeout applies to synchronous calls. The event feed has no overall
	// timeout; it lives as long as the relay that opened it.
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// RelayConfig tunes the prompt-streaming relay.
type RelayConfig struct {
	// Timeout is the safety ceiling for one prompt stream.
	Timeout time.Duration
	// GraceInterval is the delay between the completion event and "done".
	GraceInterval time.Duration
	// Heartbeat is the SSE comment interval; zero disables heartbeats.
	Heartbeat time.Duration
}

// RateLimitConfig configures front-door limiting per client address.
type RateLimitConfig struct {
	Enabled       bool
	Requests      int
	Window        time.Duration
	SweepInterval time.Duration
	// GlobalRPS/GlobalBurst bound the whole process; zero disables.
	GlobalRPS   float64
	GlobalBurst int
	// TrustProxyHeaders keys clients by X-Real-IP/X-Forwarded-For.
	TrustProxyHeaders bool
	// UploadsPerMinute caps POST /api/upload per client.
	UploadsPerMinute int
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// FilesConfig locates the upload and output directories.
type FilesConfig struct {
	UploadDir      string
	OutputDir      string
	MaxUploadBytes int64
}

// CacheConfig controls caching of the agent list.
type CacheConfig struct {
	AgentTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// TracingConfig mirrors telemetry.Config.
type TracingConfig struct {
	Enabled    bool
	Exporter   string
	Endpoint   string
	SampleRate float64
}

// FileConfig is the on-disk representation. Every field is optional;
// durations are Go duration strings.
type FileConfig struct {
	ListenAddr      string `yaml:"listenAddr"`
	LogLevel        string `yaml:"logLevel"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
	StaticDir       string `yaml:"staticDir"`
	Metrics         *bool  `yaml:"metrics"`

	Upstream struct {
		BaseURL          string `yaml:"baseURL"`
		Username         string `yaml:"username"`
		Password         string `yaml:"password"`
		Timeout          string `yaml:"timeout"`
		BreakerThreshold int    `yaml:"breakerThreshold"`
		BreakerReset     string `yaml:"breakerReset"`
	} `yaml:"upstream"`

	Relay struct {
		Timeout       string `yaml:"timeout"`
		GraceInterval string `yaml:"graceInterval"`
		Heartbeat     string `yaml:"heartbeat"`
	} `yaml:"relay"`

	RateLimit struct {
		Enabled           *bool   `yaml:"enabled"`
		Requests          int     `yaml:"requests"`
		Window            string  `yaml:"window"`
		SweepInterval     string  `yaml:"sweepInterval"`
		GlobalRPS         float64 `yaml:"globalRPS"`
		GlobalBurst       int     `yaml:"globalBurst"`
		TrustProxyHeaders *bool   `yaml:"trustProxyHeaders"`
		UploadsPerMinute  int     `yaml:"uploadsPerMinute"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Files struct {
		UploadDir      string `yaml:"uploadDir"`
		OutputDir      string `yaml:"outputDir"`
		MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	} `yaml:"files"`

	Cache struct {
		AgentTTL      string `yaml:"agentTTL"`
		RedisAddr     string `yaml:"redisAddr"`
		RedisPassword string `yaml:"redisPassword"`
		RedisDB       int    `yaml:"redisDB"`
	} `yaml:"cache"`

	Tracing struct {
		Enabled    *bool   `yaml:"enabled"`
		Exporter   string  `yaml:"exporter"`
		Endpoint   string  `yaml:"endpoint"`
		SampleRate float64 `yaml:"sampleRate"`
	} `yaml:"tracing"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:      ":3000",
		LogLevel:        "info",
		LogService:      "chatrelay",
		ShutdownTimeout: 10 * time.Second,
		MetricsEnabled:  true,
		Upstream: UpstreamConfig{
			BaseURL:          "http://127.0.0.1:4096",
			Username:         "opencode",
			Timeout:          30 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Relay: RelayConfig{
			Timeout:       5 * time.Minute,
			GraceInterval: time.Second,
			Heartbeat:     15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			Requests:         120,
			Window:           time.Minute,
			SweepInterval:    5 * time.Minute,
			GlobalRPS:        100,
			GlobalBurst:      200,
			UploadsPerMinute: 10,
		},
		Files: FilesConfig{
			UploadDir:      "data/uploads",
			OutputDir:      "data/outputs",
			MaxUploadBytes: 50 << 20,
		},
		Cache: CacheConfig{
			AgentTTL: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}
