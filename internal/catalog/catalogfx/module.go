package catalogfx

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/catalog/sqlite"
	"github.com/repoctx/repoctx/internal/config"
)

// Params represents dependencies for the catalog
type Params struct {
	fx.In

	Config *config.Config
}

// NewCatalog creates the SQLite chunk catalog
func NewCatalog(lc fx.Lifecycle, params Params) (catalog.Catalog, error) {
	if params.Config.DBPath == "" {
		return nil, fmt.Errorf("database path must be specified")
	}
	cat, err := sqlite.New(params.Config.DBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return cat.Close() },
	})
	return cat, nil
}

// Module provides the chunk catalog
var Module = fx.Module("catalog",
	fx.Provide(NewCatalog),
)
