package resolverfx

import (
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/resolver"
	"github.com/repoctx/repoctx/internal/resolver/tsresolver"
)

// NewRegistry creates the resolver registry with the tree-sitter
// TypeScript resolver bound to the script extensions.
func NewRegistry() *resolver.Registry {
	return resolver.NewRegistry(tsresolver.New())
}

// Module provides symbol resolution
var Module = fx.Module("resolver",
	fx.Provide(NewRegistry),
)
