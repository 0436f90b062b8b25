package cmdsfx

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	"github.com/repoctx/repoctx/internal/content/fs"
	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/orchestrator"
	"github.com/repoctx/repoctx/internal/retriever"
)

// CommandRunner provides methods to run different application commands
type CommandRunner struct {
	orchestrator *orchestrator.Orchestrator
	retriever    *retriever.Retriever
	provider     *fs.Provider
	mcpServer    *server.MCPServer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Orchestrator *orchestrator.Orchestrator `optional:"true"`
	Retriever    *retriever.Retriever       `optional:"true"`
	Provider     *fs.Provider               `optional:"true"`
	MCPServer    *server.MCPServer          `optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	return &CommandRunner{
		orchestrator: params.Orchestrator,
		retriever:    params.Retriever,
		provider:     params.Provider,
		mcpServer:    params.MCPServer,
	}
}

// RunIndex starts an index run and waits for its terminal report.
func (r *CommandRunner) RunIndex(ctx context.Context, repoID, path, commit string) error {
	if r.orchestrator == nil || r.provider == nil {
		return fmt.Errorf("indexing not available")
	}
	if err := r.provider.Register(repoID, path); err != nil {
		return err
	}
	runID, err := r.orchestrator.StartIndexRun(ctx, repoID, commit)
	if err != nil {
		return err
	}
	fmt.Printf("run %s started\n", runID)

	rep, err := r.orchestrator.Wait(ctx, runID)
	if err != nil {
		return err
	}
	printReport(rep)
	if rep.State == models.RunFailed {
		return fmt.Errorf("index run failed: %s", rep.Err)
	}
	return nil
}

func printReport(rep *models.RunReport) {
	fmt.Printf("state:           %s\n", rep.State)
	fmt.Printf("embedded:        %d\n", rep.Embedded)
	fmt.Printf("carried forward: %d\n", rep.CarriedForward)
	fmt.Printf("deleted:         %d\n", rep.Deleted)
	if len(rep.Failures) > 0 {
		fmt.Printf("failed chunks:   %d\n", len(rep.Failures))
		for _, f := range rep.Failures {
			fmt.Printf("  %s:%d-%d %s: %s\n", f.Path, f.StartLine, f.EndLine, f.Kind, f.Reason)
		}
	}
}

// RunSearch executes a retrieval query against the committed index.
func (r *CommandRunner) RunSearch(ctx context.Context, repoID, query string, topK int) error {
	if r.retriever == nil {
		return fmt.Errorf("retrieval not available")
	}
	hits, err := r.retriever.Retrieve(ctx, repoID, query, topK)
	if err != nil {
		return err
	}
	for i, hit := range hits {
		name := hit.Chunk.SymbolFQN
		if name == "" {
			name = "-"
		}
		fmt.Printf("%2d. [%.3f] %s %s:%d-%d\n",
			i+1, hit.Score, name, hit.Chunk.Path, hit.Chunk.StartLine, hit.Chunk.EndLine)
	}
	return nil
}

// RunStatus prints the commit a repository is indexed at.
func (r *CommandRunner) RunStatus(ctx context.Context, repoID string) error {
	if r.retriever == nil {
		return fmt.Errorf("retrieval not available")
	}
	commit, err := r.retriever.Status(ctx, repoID)
	if err != nil {
		return err
	}
	if commit == "" {
		fmt.Printf("%s: not indexed\n", repoID)
		return nil
	}
	fmt.Printf("%s: indexed at %s\n", repoID, commit)
	return nil
}

// RunMCPServer executes the MCP server
func (r *CommandRunner) RunMCPServer(transport, address string) error {
	if r.mcpServer == nil {
		return fmt.Errorf("MCP server not available")
	}

	switch transport {
	case "stdio":
		return server.ServeStdio(r.mcpServer)
	case "http":
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		httpSrv := server.NewStreamableHTTPServer(r.mcpServer)
		return httpSrv.Start(addr)
	case "sse":
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		sseSrv := server.NewSSEServer(r.mcpServer,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		return sseSrv.Start(addr)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(NewCommandRunner),
)
