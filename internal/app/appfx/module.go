package appfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/cmd/cmdsfx"
	"github.com/repoctx/repoctx/internal/catalog/catalogfx"
	"github.com/repoctx/repoctx/internal/config/configfx"
	"github.com/repoctx/repoctx/internal/content/contentfx"
	"github.com/repoctx/repoctx/internal/embeddings/embeddingsfx"
	"github.com/repoctx/repoctx/internal/mcp/mcpfx"
	"github.com/repoctx/repoctx/internal/orchestrator/orchestratorfx"
	"github.com/repoctx/repoctx/internal/resolver/resolverfx"
	"github.com/repoctx/repoctx/internal/retriever/retrieverfx"
	"github.com/repoctx/repoctx/internal/vectorstore/vectorstorefx"
)

// Module combines all application modules
var Module = fx.Options(
	configfx.Module,
	resolverfx.Module,
	contentfx.Module,
	embeddingsfx.Module,
	catalogfx.Module,
	vectorstorefx.Module,
	orchestratorfx.Module,
	retrieverfx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)

// SupplyConfig builds the named config value overrides every command
// passes into fx.New.
func SupplyConfig(configPath, dbPath, embedURL, embedModel string, verbose bool) fx.Option {
	return fx.Supply(
		fx.Annotate(configPath, fx.ResultTags(`name:"configPath"`)),
		fx.Annotate(dbPath, fx.ResultTags(`name:"dbPath"`)),
		fx.Annotate(embedURL, fx.ResultTags(`name:"embedURL"`)),
		fx.Annotate(embedModel, fx.ResultTags(`name:"embedModel"`)),
		fx.Annotate(verbose, fx.ResultTags(`name:"verbose"`)),
	)
}
