package retrieverfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/retriever"
	"github.com/repoctx/repoctx/internal/vectorstore"
)

// Params represents dependencies for the retriever
type Params struct {
	fx.In

	Embedder embeddings.Embedder
	Vector   vectorstore.Store
	Catalog  catalog.Catalog
}

// NewRetriever creates the context retriever
func NewRetriever(params Params) *retriever.Retriever {
	return retriever.New(params.Embedder, params.Vector, params.Catalog)
}

// Module provides retrieval
var Module = fx.Module("retriever",
	fx.Provide(NewRetriever),
)
