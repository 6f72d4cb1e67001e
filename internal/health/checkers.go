// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/chatrelay/chatrelay/internal/upstream"
)

// UpstreamProbe is the part of the agent server client the upstream check
// needs.
type UpstreamProbe interface {
	Health(ctx context.Context) (upstream.Health, error)
	BreakerState() upstream.State
}

// UpstreamChecker reports whether the agent server answers its health
// endpoint.
type UpstreamChecker struct {
	probe UpstreamProbe
}

// NewUpstreamChecker creates the "upstream" check.
func NewUpstreamChecker(probe UpstreamProbe) *UpstreamChecker {
	return &UpstreamChecker{probe: probe}
}

func (c *UpstreamChecker) Name() string { return "upstream" }

func (c *UpstreamChecker) Check(ctx context.Context) CheckResult {
	h, err := c.probe.Health(ctx)
	if err != nil {
		msg := "agent server unreachable"
		if errors.Is(err, upstream.ErrCircuitOpen) {
			msg = "circuit breaker open"
		}
		return CheckResult{Status: StatusUnhealthy, Message: msg, Error: err.Error()}
	}
	if c.probe.BreakerState() == upstream.StateHalfOpen {
		return CheckResult{Status: StatusDegraded, Message: "recovering, version " + h.Version}
	}
	return CheckResult{Status: StatusHealthy, Message: "version " + h.Version}
}

// Pinger is satisfied by cache backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheChecker reports cache reachability. A failed cache degrades the
// service but does not make it unready; lookups fall through to upstream.
type CacheChecker struct {
	cache Pinger
}

// NewCacheChecker creates the "cache" check.
func NewCacheChecker(cache Pinger) *CacheChecker {
	return &CacheChecker{cache: cache}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if err := c.cache.Ping(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "cache unreachable", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker checks that a directory exists and accepts writes.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a check for a writable directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: c.path, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("directory does not exist")
		}
		return err
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	f, err := os.CreateTemp(path, ".write_test*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
