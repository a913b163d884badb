package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the graph to AI agents over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout. Agents can walk,
probe, analyze and export the graph through its tools, and read the
graph summary and individual positions as resources.

The graph is saved after every walk step and again on shutdown.
Diagnostics go to stderr; stdout carries only protocol traffic.

Example MCP client configuration:
  {"command": "ideograph", "args": ["mcp-server"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			tree, err := resolveTree(cmd)
			if err != nil {
				return fmt.Errorf("failed to load fork tree: %w", err)
			}
			storePath, _ := cmd.Flags().GetString("store")
			if storePath == "" {
				storePath = settings.Store.Path
			}
			if root == "" {
				if root, err = os.Getwd(); err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "ideograph",
				Version:   version,
				StorePath: storePath,
				Root:      root,
				Settings:  settings,
				Tree:      tree,
				Logger:    logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("root", "", "Project directory; exports may also go under <root>/.ideograph/exports (default: working directory)")

	return cmd
}
