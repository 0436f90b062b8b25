package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
)

func NewIndexCommand(g *GlobalFlags) *cobra.Command {
	var (
		repoID string
		path   string
		commit string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a repository snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("--path is required")
			}
			if commit == "" {
				return fmt.Errorf("--commit is required")
			}
			if repoID == "" {
				repoID = path
			}
			return runApp(cmd.Context(), g, func(ctx context.Context, runner *cmdsfx.CommandRunner) error {
				return runner.RunIndex(ctx, repoID, path, commit)
			})
		},
	}

	cmd.Flags().StringVar(&repoID, "repo", "", "Repository id (defaults to the path)")
	cmd.Flags().StringVar(&path, "path", "", "Path to repository root")
	cmd.Flags().StringVar(&commit, "commit", "", "Snapshot commit hash")

	return cmd
}
