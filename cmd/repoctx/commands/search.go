package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
	"github.com/repoctx/repoctx/internal/retriever"
)

func NewSearchCommand(g *GlobalFlags) *cobra.Command {
	var (
		repoID string
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Retrieve relevant chunks from the committed index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoID == "" {
				return fmt.Errorf("--repo is required")
			}
			query := args[0]
			return runApp(cmd.Context(), g, func(ctx context.Context, runner *cmdsfx.CommandRunner) error {
				return runner.RunSearch(ctx, repoID, query, topK)
			})
		},
	}

	cmd.Flags().StringVar(&repoID, "repo", "", "Repository id")
	cmd.Flags().IntVar(&topK, "top-k", retriever.DefaultTopK, "Top K results")

	return cmd
}
