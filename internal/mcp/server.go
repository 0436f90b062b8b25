// Package mcp exposes indexing and retrieval as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/repoctx/repoctx/internal/content/fs"
	"github.com/repoctx/repoctx/internal/orchestrator"
	"github.com/repoctx/repoctx/internal/retriever"
)

const serverVersion = "0.1.0"

// Server wires the orchestrator and retriever behind MCP tools.
type Server struct {
	server    *server.MCPServer
	orch      *orchestrator.Orchestrator
	retriever *retriever.Retriever
	provider  *fs.Provider
}

// New returns an MCP server exposing index and retrieval tools.
func New(orch *orchestrator.Orchestrator, ret *retriever.Retriever, provider *fs.Provider) *server.MCPServer {
	srv := &Server{
		server: server.NewMCPServer(
			"repoctx/mcp",
			serverVersion,
			server.WithToolCapabilities(true),
		),
		orch:      orch,
		retriever: ret,
		provider:  provider,
	}

	srv.server.AddTool(newIndexRepositoryTool(), srv.handleIndexRepository)
	srv.server.AddTool(newIndexStatusTool(), srv.handleIndexStatus)
	srv.server.AddTool(newRetrieveContextTool(), srv.handleRetrieveContext)
	srv.server.AddTool(newRepoStatusTool(), srv.handleRepoStatus)

	return srv.server
}

// Tool definitions
func newIndexRepositoryTool() mcp.Tool {
	return mcp.NewTool(
		"index_repository",
		mcp.WithDescription("Start an index run for a repository snapshot; returns the run id immediately"),
		mcp.WithString("repo_id", mcp.Description("Repository identifier"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Repository root directory"), mcp.Required()),
		mcp.WithString("commit", mcp.Description("Snapshot commit hash (40 hex chars)"), mcp.Required()),
		mcp.WithBoolean("wait", mcp.Description("Block until the run finishes"), mcp.DefaultBool(false)),
	)
}

func newIndexStatusTool() mcp.Tool {
	return mcp.NewTool(
		"index_status",
		mcp.WithDescription("Report the state and counters of an index run"),
		mcp.WithString("run_id", mcp.Description("Run id returned by index_repository"), mcp.Required()),
	)
}

func newRetrieveContextTool() mcp.Tool {
	return mcp.NewTool(
		"retrieve_context",
		mcp.WithDescription("Retrieve the most relevant indexed chunks for a natural language query"),
		mcp.WithString("repo_id", mcp.Description("Repository identifier"), mcp.Required()),
		mcp.WithString("query", mcp.Description("Natural language query"), mcp.Required()),
		mcp.WithNumber("top_k", mcp.Description("Top K results"), mcp.DefaultNumber(retriever.DefaultTopK)),
	)
}

func newRepoStatusTool() mcp.Tool {
	return mcp.NewTool(
		"repo_status",
		mcp.WithDescription("Report the commit a repository is currently indexed at"),
		mcp.WithString("repo_id", mcp.Description("Repository identifier"), mcp.Required()),
	)
}

// Handlers
func (srv *Server) handleIndexRepository(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	repoID, err := req.RequireString("repo_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commit, err := req.RequireString("commit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := srv.provider.Register(repoID, path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("register repository failed: %v", err)), nil
	}
	runID, err := srv.orch.StartIndexRun(ctx, repoID, commit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("wait", false) {
		rep, err := srv.orch.Wait(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultStructuredOnly(rep), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]string{"run_id": runID}), nil
}

func (srv *Server) handleIndexStatus(
	_ context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, ok := srv.orch.Report(runID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown run %s", runID)), nil
	}
	return mcp.NewToolResultStructuredOnly(rep), nil
}

func (srv *Server) handleRetrieveContext(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	repoID, err := req.RequireString("repo_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", retriever.DefaultTopK)

	hits, err := srv.retriever.Retrieve(ctx, repoID, query, topK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(hits), nil
}

func (srv *Server) handleRepoStatus(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	repoID, err := req.RequireString("repo_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commit, err := srv.retriever.Status(ctx, repoID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]string{
		"repo_id": repoID,
		"commit":  commit,
	}), nil
}
