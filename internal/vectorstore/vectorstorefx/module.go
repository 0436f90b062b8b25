package vectorstorefx

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/config"
	"github.com/repoctx/repoctx/internal/vectorstore"
	"github.com/repoctx/repoctx/internal/vectorstore/sqlvec"
)

// Params represents dependencies for the vector store
type Params struct {
	fx.In

	Config *config.Config
}

// NewVectorStore creates the sqlite-vec backed store
func NewVectorStore(params Params) (vectorstore.Store, error) {
	if params.Config.DBPath == "" {
		return nil, fmt.Errorf("database path must be specified")
	}
	return sqlvec.New(params.Config.DBPath, params.Config.VectorDimension)
}

// Module provides the vector store
var Module = fx.Module("vectorstore",
	fx.Provide(NewVectorStore),
)
