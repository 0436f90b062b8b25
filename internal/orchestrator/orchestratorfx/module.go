package orchestratorfx

import (
	"time"

	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/config"
	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/orchestrator"
	"github.com/repoctx/repoctx/internal/resolver"
	"github.com/repoctx/repoctx/internal/vectorstore"
)

// Params represents dependencies for the orchestrator
type Params struct {
	fx.In

	Config    *config.Config
	Provider  content.Provider
	Resolvers *resolver.Registry
	Embedder  embeddings.Embedder
	Cache     *embeddings.Cache
	Vector    vectorstore.Store
	Catalog   catalog.Catalog
}

// NewOrchestrator creates the index run orchestrator
func NewOrchestrator(params Params) *orchestrator.Orchestrator {
	return orchestrator.New(
		params.Provider,
		params.Resolvers,
		params.Embedder,
		params.Cache,
		params.Vector,
		params.Catalog,
		optionsFromConfig(params.Config),
	)
}

func optionsFromConfig(cfg *config.Config) orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if cfg.MaxChunkLines > 0 {
		opts.MaxChunkLines = cfg.MaxChunkLines
	}
	if cfg.EmbedBatchSize > 0 {
		opts.EmbedBatchSize = cfg.EmbedBatchSize
	}
	if cfg.EmbedFanOut > 0 {
		opts.EmbedFanOut = cfg.EmbedFanOut
	}
	if cfg.RetryAttempts > 0 {
		opts.RetryAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseMs > 0 {
		opts.RetryBaseDelay = time.Duration(cfg.RetryBaseMs) * time.Millisecond
	}
	if cfg.RetryMaxMs > 0 {
		opts.RetryMaxDelay = time.Duration(cfg.RetryMaxMs) * time.Millisecond
	}
	opts.RetainHistory = cfg.RetainHistory
	return opts
}

// Module provides the orchestrator
var Module = fx.Module("orchestrator",
	fx.Provide(NewOrchestrator),
)
