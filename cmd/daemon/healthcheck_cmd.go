// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthcheckCmd probes a running instance; it is meant for container
// HEALTHCHECK instructions and exits non-zero on failure.
func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe /healthz (or /readyz) of a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.OutOrStdout(), addr, mode, timeout)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "live", "healthcheck mode: live (default) or ready")
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:3000", "base URL of the instance")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}

func runHealthcheck(out io.Writer, addr, mode string, timeout time.Duration) error {
	path := "/healthz"
	switch mode {
	case "live":
	case "ready":
		path = "/readyz"
	default:
		return fmt.Errorf("unknown healthcheck mode %q", mode)
	}

	client := http.Client{Timeout: timeout}
	resp, err := client.Get(addr + path)
	if err != nil {
		return fmt.Errorf("healthcheck failed (network): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
	}
	_, _ = fmt.Fprintf(out, "Healthcheck successful (%s)\n", mode)
	return nil
}
