package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server on stdio",
		Long: `Serve battsim tools over the Model Context Protocol on stdin/stdout.

Tools:
  battsim_generate   Generate datasets into the project
  battsim_schema     Describe columns and class profiles
  battsim_validate   Check a dataset file against its schema

Every file a tool reads or writes must stay inside --root. Tool calls
are rate limited and recorded in <root>/.battsim/audit.jsonl.

Example client configuration:
  {"command": "battsim", "args": ["mcp-server", "--root", "/path/to/project"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			server, err := mcp.NewServer(cmd.Context(), &mcp.Config{
				Name:     "battsim",
				Version:  version,
				Root:     absRoot,
				Settings: cfg,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
