package mcpfx

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/content/fs"
	appmcp "github.com/repoctx/repoctx/internal/mcp"
	"github.com/repoctx/repoctx/internal/orchestrator"
	"github.com/repoctx/repoctx/internal/retriever"
)

// Params represents dependencies for the MCP server
type Params struct {
	fx.In

	Orchestrator *orchestrator.Orchestrator
	Retriever    *retriever.Retriever
	Provider     *fs.Provider
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(params Params) *server.MCPServer {
	return appmcp.New(params.Orchestrator, params.Retriever, params.Provider)
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(NewMCPServer),
)
