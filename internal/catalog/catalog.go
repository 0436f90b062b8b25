// Package catalog defines the relational record of every chunk: its
// location, content hash, commit, and the vector id it maps to. The
// catalog is the source of truth for reconciliation against the vector
// store; it never holds vector payloads.
package catalog

import (
	"context"

	"github.com/repoctx/repoctx/internal/models"
)

// Location identifies a chunk's place in a file tree, independent of
// commit.
type Location struct {
	Path      string
	StartLine int
	EndLine   int
}

type Catalog interface {
	// Upsert writes a chunk row keyed by (repo, path, start, end,
	// commit), replacing a prior row for the same key.
	Upsert(ctx context.Context, ch models.Chunk) error

	// FindByLocation returns the chunk at a location and commit, or
	// nil when absent.
	FindByLocation(ctx context.Context, repoID string, loc Location, commit string) (*models.Chunk, error)

	// FindByVectorID resolves a vector store hit back to its chunk row
	// at the given commit, or nil when absent.
	FindByVectorID(ctx context.Context, repoID, vectorID, commit string) (*models.Chunk, error)

	// ListByCommit returns every chunk of a repository at one commit.
	ListByCommit(ctx context.Context, repoID, commit string) ([]models.Chunk, error)

	// ListCommits returns the distinct commits that still have chunk
	// rows for a repository.
	ListCommits(ctx context.Context, repoID string) ([]string, error)

	// DeleteByLocation removes one chunk version.
	DeleteByLocation(ctx context.Context, repoID string, loc Location, commit string) error

	// CountByVectorID counts rows of the repository referencing a
	// vector id, across commits. Used to guard shared-vector deletes.
	CountByVectorID(ctx context.Context, repoID, vectorID string) (int, error)

	// PurgeCommit removes every chunk row of a superseded commit.
	PurgeCommit(ctx context.Context, repoID, commit string) error

	// EmbeddedModel reports the embedding model and dimension recorded
	// on the chunks of one commit ("" and 0 when none are embedded).
	EmbeddedModel(ctx context.Context, repoID, commit string) (string, int, error)

	// LastIndexedCommit returns the repository's current index commit,
	// "" when the repository was never indexed.
	LastIndexedCommit(ctx context.Context, repoID string) (string, error)

	// SetLastIndexedCommit moves the repository's current index state.
	SetLastIndexedCommit(ctx context.Context, repoID, commit string) error

	Close() error
}
