package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
)

// NewMCPCommand starts an MCP server exposing index and retrieval
// tools.
func NewMCPCommand(g *GlobalFlags) *cobra.Command {
	var (
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server, providing index and context retrieval tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), g, func(_ context.Context, runner *cmdsfx.CommandRunner) error {
				return runner.RunMCPServer(transport, address)
			})
		},
	}

	cmd.Flags().
		StringVarP(&transport, "transport", "t", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")

	return cmd
}
