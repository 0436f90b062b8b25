package embeddingsfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/config"
	"github.com/repoctx/repoctx/internal/embeddings"
)

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config *config.Config
}

// NewEmbedder creates the embedding API client
func NewEmbedder(params Params) embeddings.Embedder {
	return embeddings.NewApi(params.Config.EmbedURL, params.Config.EmbedModel, params.Config.VectorDimension)
}

// NewCache creates the cross-run vector cache
func NewCache(params Params) *embeddings.Cache {
	return embeddings.NewCache(params.Config.CacheSize)
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(
		NewEmbedder,
		NewCache,
	),
)
