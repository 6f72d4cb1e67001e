// SPDX-License-Identifier: MIT

// Package daemon wires the relay's components together and owns the process
// lifecycle: the HTTP server, config reloads and background workers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chatrelay/chatrelay/internal/api"
	"github.com/chatrelay/chatrelay/internal/cache"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/files"
	"github.com/chatrelay/chatrelay/internal/health"
	"github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/ratelimit"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/telemetry"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

const (
	agentsCacheName    = "agents"
	memoryCacheCleanup = time.Minute
)

// Runtime is the wired service graph for one process.
type Runtime struct {
	Upstream *upstream.Client
	Relay    *relay.Relay
	Files    *files.Store
	Cache    cache.Cache
	Agents   *cache.Loader
	Health   *health.Manager
	Limiter  *ratelimit.Limiter
	API      *api.Server

	telemetry *telemetry.Provider
	logger    zerolog.Logger
}

// Build constructs every component from cfg. On error, anything already
// opened is released.
func Build(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	rt := &Runtime{logger: log.WithComponent("daemon")}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	rt.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    "production",
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	rt.Upstream, err = upstream.New(upstream.Options{
		BaseURL:          cfg.Upstream.BaseURL,
		Username:         cfg.Upstream.Username,
		Password:         cfg.Upstream.Password,
		Timeout:          cfg.Upstream.Timeout,
		BreakerThreshold: cfg.Upstream.BreakerThreshold,
		BreakerReset:     cfg.Upstream.BreakerReset,
	})
	if err != nil {
		return nil, fmt.Errorf("init upstream client: %w", err)
	}

	rt.Relay = relay.New(rt.Upstream, relayOptions(cfg))
	rt.Files = files.NewStore(files.Config{
		UploadDir:      cfg.Files.UploadDir,
		OutputDir:      cfg.Files.OutputDir,
		MaxUploadBytes: cfg.Files.MaxUploadBytes,
	})

	rt.Cache = rt.newCache(ctx, cfg.Cache)
	rt.Agents = cache.NewLoader(rt.Cache, cfg.Cache.AgentTTL)

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewUpstreamChecker(rt.Upstream))
	rt.Health.RegisterChecker(health.NewCacheChecker(rt.Cache))
	rt.Health.RegisterChecker(health.NewDirChecker("uploads", cfg.Files.UploadDir))
	rt.Health.RegisterChecker(health.NewDirChecker("outputs", cfg.Files.OutputDir))

	if cfg.RateLimit.Enabled {
		rt.Limiter = ratelimit.New(ratelimit.Config{
			Requests:      cfg.RateLimit.Requests,
			Window:        cfg.RateLimit.Window,
			GlobalRate:    rate.Limit(cfg.RateLimit.GlobalRPS),
			GlobalBurst:   cfg.RateLimit.GlobalBurst,
			SweepInterval: cfg.RateLimit.SweepInterval,
		}, nil)
	}

	rt.API, err = api.New(cfg, api.Deps{
		Upstream: rt.Upstream,
		Relay:    rt.Relay,
		Files:    rt.Files,
		Agents:   rt.Agents,
		Health:   rt.Health,
		Limiter:  rt.Limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("init api: %w", err)
	}
	return rt, nil
}

// newCache prefers Redis when configured and falls back to process memory
// when Redis is unreachable at startup.
func (rt *Runtime) newCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(agentsCacheName, memoryCacheCleanup)
	}
	rc, err := cache.NewRedisCache(ctx, agentsCacheName, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log.WithComponent("cache"))
	if err != nil {
		rt.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "cache.redis_unavailable").
			Str("addr", cfg.RedisAddr).
			Msg("redis unavailable, using in-memory cache")
		return cache.NewMemoryCache(agentsCacheName, memoryCacheCleanup)
	}
	return rc
}

func relayOptions(cfg config.AppConfig) relay.Options {
	return relay.Options{
		Timeout:       cfg.Relay.Timeout,
		GraceInterval: cfg.Relay.GraceInterval,
		Heartbeat:     cfg.Relay.Heartbeat,
	}
}

// Apply pushes the hot-reloadable settings of cfg into the running
// components. Everything else needs a restart.
func (rt *Runtime) Apply(cfg config.AppConfig) {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		rt.logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
	}
	if rt.Relay != nil {
		rt.Relay.SetOptions(relayOptions(cfg))
	}
	if rt.Agents != nil {
		rt.Agents.SetTTL(cfg.Cache.AgentTTL)
	}
	rt.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Str("log_level", cfg.LogLevel).
		Dur("relay_timeout", cfg.Relay.Timeout).
		Dur("agent_ttl", cfg.Cache.AgentTTL).
		Msg("applied reloaded configuration")
}

// Close releases the cache and flushes traces.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Cache != nil {
		if err := rt.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
