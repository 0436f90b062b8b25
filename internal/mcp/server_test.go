package mcp

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	catmem "github.com/repoctx/repoctx/internal/catalog/memory"
	"github.com/repoctx/repoctx/internal/content/fs"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/orchestrator"
	"github.com/repoctx/repoctx/internal/resolver"
	"github.com/repoctx/repoctx/internal/retriever"
	vecmem "github.com/repoctx/repoctx/internal/vectorstore/memory"
)

func TestNew(t *testing.T) {
	provider := fs.New()
	emb := embeddings.NewLocal(8)
	vec := vecmem.New()
	cat := catmem.New()
	orch := orchestrator.New(provider, resolver.NewRegistry(resolver.Noop{}), emb,
		embeddings.NewCache(0), vec, cat, orchestrator.Options{})

	server := New(orch, retriever.New(emb, vec, cat), provider)
	assert.NotNil(t, server)
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		toolFunc func() mcp.Tool
		toolName string
	}{
		{"index_repository", newIndexRepositoryTool, "index_repository"},
		{"index_status", newIndexStatusTool, "index_status"},
		{"retrieve_context", newRetrieveContextTool, "retrieve_context"},
		{"repo_status", newRepoStatusTool, "repo_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := tt.toolFunc()
			assert.Equal(t, tt.toolName, tool.Name)
			assert.NotEmpty(t, tool.Description)
		})
	}
}

func TestIndexRepositoryTool(t *testing.T) {
	tool := newIndexRepositoryTool()

	assert.Contains(t, tool.InputSchema.Properties, "repo_id")
	assert.Contains(t, tool.InputSchema.Properties, "path")
	assert.Contains(t, tool.InputSchema.Properties, "commit")
	assert.Contains(t, tool.InputSchema.Required, "repo_id")
	assert.Contains(t, tool.InputSchema.Required, "commit")
}

func TestRetrieveContextTool(t *testing.T) {
	tool := newRetrieveContextTool()

	assert.Contains(t, tool.InputSchema.Properties, "query")
	assert.Contains(t, tool.InputSchema.Properties, "top_k")
	assert.Contains(t, tool.InputSchema.Required, "query")
}
