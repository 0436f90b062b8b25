package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
)

func NewStatusCommand(g *GlobalFlags) *cobra.Command {
	var repoID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the commit a repository is indexed at",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoID == "" {
				return fmt.Errorf("--repo is required")
			}
			return runApp(cmd.Context(), g, func(ctx context.Context, runner *cmdsfx.CommandRunner) error {
				return runner.RunStatus(ctx, repoID)
			})
		},
	}

	cmd.Flags().StringVar(&repoID, "repo", "", "Repository id")

	return cmd
}
