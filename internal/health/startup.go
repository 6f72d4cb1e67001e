// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/log"
)

// PerformStartupChecks validates the environment before the server starts:
// the listen address parses, the file directories exist (created if
// missing) and accept writes, and the static UI directory exists if set.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := checkListenAddr(cfg.ListenAddr); err != nil {
		return err
	}

	for _, dir := range []struct{ name, path string }{
		{"upload", cfg.Files.UploadDir},
		{"output", cfg.Files.OutputDir},
	} {
		if err := ensureDir(logger, dir.path); err != nil {
			return fmt.Errorf("%s directory check failed: %w", dir.name, err)
		}
	}

	if cfg.StaticDir != "" {
		info, err := os.Stat(cfg.StaticDir)
		if err != nil {
			return fmt.Errorf("static directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("static directory: %s is not a directory", cfg.StaticDir)
		}
	}

	if cfg.Upstream.Password == "" {
		logger.Warn().Msg("agent server password not set; upstream calls are unauthenticated")
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

func ensureDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	if err := checkWritableDir(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug().Str("path", path).Msg("directory is writable")
	return nil
}
