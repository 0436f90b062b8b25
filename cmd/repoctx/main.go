package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/repoctx/repoctx/cmd/repoctx/commands"
)

func main() {
	var flags commands.GlobalFlags

	rootCmd := &cobra.Command{
		Use:   "repoctx",
		Short: "Repository indexing and context retrieval",
	}
	flags.Register(rootCmd)

	rootCmd.AddCommand(
		commands.NewIndexCommand(&flags),
		commands.NewSearchCommand(&flags),
		commands.NewStatusCommand(&flags),
		commands.NewMCPCommand(&flags),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
