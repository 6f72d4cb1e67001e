// SPDX-License-Identifier: MIT

// Command chatrelay serves the browser chat UI API and relays prompts to an
// agent server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/version"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chatrelay",
		Short:         "Backend-for-frontend between a browser chat UI and an agent server",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand serves.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML, JSON or JSONC)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHealthcheckCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
