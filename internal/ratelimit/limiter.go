// SPDX-License-Identifier: MIT

// Package ratelimit implements front-door request limiting: a fixed window
// per client address backed by an injected Store, plus an optional
// process-wide token bucket.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/metrics"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-client fixed window
	Requests int
	Window   time.Duration

	// Global token bucket; zero GlobalRate disables it.
	GlobalRate  rate.Limit
	GlobalBurst int

	// SweepInterval is how often expired client windows are dropped.
	SweepInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Requests:      120,
		Window:        time.Minute,
		GlobalRate:    100, // 100 req/s globally
		GlobalBurst:   200,
		SweepInterval: 5 * time.Minute,
	}
}

// Limiter combines the global bucket with per-client windows.
type Limiter struct {
	config Config
	store  Store
	global *rate.Limiter
	now    func() time.Time
}

// New creates a limiter. A nil store selects a MemoryStore sized by config.
func New(config Config, store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore(config.Requests, config.Window)
	}
	l := &Limiter{
		config: config,
		store:  store,
		now:    time.Now,
	}
	if config.GlobalRate > 0 {
		burst := config.GlobalBurst
		if burst <= 0 {
			burst = 1
		}
		l.global = rate.NewLimiter(config.GlobalRate, burst)
	}
	return l
}

// Allow checks if a request from clientKey is allowed.
func (l *Limiter) Allow(clientKey string) Decision {
	now := l.now()

	// 1. Check global limit
	if l.global != nil && !l.global.AllowN(now, 1) {
		metrics.RecordRateLimitRejection("global")
		return Decision{Limit: l.config.Requests, ResetAt: now.Add(time.Second)}
	}

	// 2. Check per-client window
	d := l.store.Hit(clientKey, now)
	if !d.Allowed {
		metrics.RecordRateLimitRejection("client")
	}
	return d
}

// Sweep drops expired client windows once.
func (l *Limiter) Sweep() int {
	n := l.store.Sweep(l.now())
	metrics.RateLimitTrackedClients.Set(float64(n))
	return n
}

// Run sweeps on the configured interval until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	interval := l.config.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	logger := rlog.WithComponent("ratelimit")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := l.Sweep()
			logger.Debug().Int("tracked_clients", n).Msg("swept client windows")
		}
	}
}
