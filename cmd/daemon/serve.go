// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/daemon"
	"github.com/chatrelay/chatrelay/internal/health"
	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/version"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	rlog.Configure(rlog.Config{
		Level:   "info",
		Service: "chatrelay",
		Version: version.Version,
	})
	logger := rlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath = strings.TrimSpace(configPath)
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}

	rlog.Configure(rlog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = rlog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Str("upstream", redactURL(cfg.Upstream.BaseURL)).
		Str("listen", cfg.ListenAddr).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str("event", "startup.check_failed").Msg("startup checks failed")
		return err
	}

	rt, err := daemon.Build(ctx, cfg)
	if err != nil {
		return err
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.API,
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return err
	}
	mgr.RegisterShutdownHook("runtime", rt.Close)

	holder := config.NewHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt)

	logger.Info().
		Str("event", "daemon.start").
		Str("version", version.String()).
		Msg("starting chatrelay")
	if err := app.Run(ctx); err != nil {
		return err
	}
	logger.Info().Str("event", "daemon.stopped").Msg("chatrelay stopped")
	return nil
}

// redactURL strips credentials before logging.
func redactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsed.User = nil
	return parsed.String()
}
