// Package retriever serves context queries from the committed index.
// Retrieval is read only and always answers from the repository's last
// indexed commit, never from an in-flight run.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/logger"
	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/vectorstore"
)

// ErrNotIndexed is returned for repositories with no completed run.
var ErrNotIndexed = errors.New("repository not indexed")

// ErrModelMismatch is returned when the query embedding is not
// comparable to the stored vectors (different model or dimension).
var ErrModelMismatch = errors.New("query embedding incompatible with index")

// DefaultTopK is the result count when the caller passes none.
const DefaultTopK = 10

type Retriever struct {
	embedder embeddings.Embedder
	vec      vectorstore.Store
	cat      catalog.Catalog
}

func New(embedder embeddings.Embedder, vec vectorstore.Store, cat catalog.Catalog) *Retriever {
	return &Retriever{embedder: embedder, vec: vec, cat: cat}
}

// Retrieve embeds the query and returns the repository's nearest
// chunks, ordered by descending score with path and start line as the
// tie break. Vector hits with no catalog row at the current commit are
// dropped with a warning.
func (r *Retriever) Retrieve(ctx context.Context, repoID, query string, topK int) ([]models.ScoredChunk, error) {
	if repoID == "" {
		return nil, fmt.Errorf("repository id must not be empty")
	}
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	commit, err := r.cat.LastIndexedCommit(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if commit == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, repoID)
	}

	qvec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	model, dim, err := r.cat.EmbeddedModel(ctx, repoID, commit)
	if err != nil {
		return nil, err
	}
	if model != "" {
		if model != r.embedder.Model() {
			return nil, fmt.Errorf("%w: index built with %s, query embedded with %s",
				ErrModelMismatch, model, r.embedder.Model())
		}
		if dim != len(qvec) {
			return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
				ErrModelMismatch, dim, len(qvec))
		}
	}

	// over-fetch so hits dropped at the catalog join still fill topK
	hits, err := r.vec.Search(ctx, repoID, qvec, topK*4)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]models.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		ch, err := r.cat.FindByVectorID(ctx, repoID, hit.VectorID, commit)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			// stale vector with no row at the served commit
			logger.Warn("dropping vector %s of %s: no catalog row at %.8s", hit.VectorID, repoID, commit)
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: *ch, Score: hit.Score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.Path != out[j].Chunk.Path {
			return out[i].Chunk.Path < out[j].Chunk.Path
		}
		return out[i].Chunk.StartLine < out[j].Chunk.StartLine
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Status reports the repository's served commit, "" when never indexed.
func (r *Retriever) Status(ctx context.Context, repoID string) (string, error) {
	return r.cat.LastIndexedCommit(ctx, repoID)
}
