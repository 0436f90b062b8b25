package contentfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/content/fs"
)

// NewProvider creates the filesystem content provider. Commands
// register repository roots on it before starting runs.
func NewProvider() *fs.Provider {
	return fs.New()
}

// AsProvider exposes the concrete provider under the interface
func AsProvider(p *fs.Provider) content.Provider {
	return p
}

// Module provides the content source
var Module = fx.Module("content",
	fx.Provide(
		NewProvider,
		AsProvider,
	),
)
