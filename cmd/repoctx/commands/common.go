package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
	"github.com/repoctx/repoctx/internal/app/appfx"
)

// GlobalFlags are shared by every subcommand and bound as persistent
// flags on the root command.
type GlobalFlags struct {
	ConfigPath string
	DBPath     string
	EmbedURL   string
	EmbedModel string
	Verbose    bool
}

// Register binds the global flags on a command.
func (g *GlobalFlags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "TOML config file path")
	cmd.PersistentFlags().StringVar(&g.DBPath, "db", "", "SQLite database path")
	cmd.PersistentFlags().StringVar(&g.EmbedURL, "embed-url", "", "Embedding API URL")
	cmd.PersistentFlags().StringVar(&g.EmbedModel, "embed-model", "", "Embedding model name")
	cmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Verbose logging")
}

// runApp builds the fx app, runs one command through the runner, and
// tears the app down again.
func runApp(ctx context.Context, g *GlobalFlags, run func(ctx context.Context, runner *cmdsfx.CommandRunner) error) error {
	var runErr error
	app := fx.New(
		fx.NopLogger,
		appfx.Module,
		appfx.SupplyConfig(g.ConfigPath, g.DBPath, g.EmbedURL, g.EmbedModel, g.Verbose),
		fx.Invoke(func(runner *cmdsfx.CommandRunner) {
			runErr = run(ctx, runner)
		}),
	)

	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return runErr
}
