// Package vectorstore defines the vector store client. The store owns
// vector payloads only, keyed by an opaque vector id and partitioned
// by repository; chunk metadata lives exclusively in the catalog and
// the two reconcile through the vector id alone.
package vectorstore

import (
	"context"
	"errors"
)

// ErrUnavailable marks a transient store failure; callers may retry.
var ErrUnavailable = errors.New("vector store unavailable")

// ErrNotFound is returned by Search plumbing for unknown ids. Delete of
// an absent key is treated as success by every implementation.
var ErrNotFound = errors.New("vector not found")

// Retryable reports whether a store error is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Hit is one nearest-neighbor result.
type Hit struct {
	VectorID string
	Score    float32
}

type Store interface {
	// Upsert writes a vector under the given id, replacing any prior
	// payload for that id.
	Upsert(ctx context.Context, vectorID, repoID string, vec []float32) error
	// Delete removes a vector. Deleting an absent id is not an error.
	Delete(ctx context.Context, vectorID string) error
	// Search returns the top K nearest neighbors within one repository,
	// ordered by descending similarity score.
	Search(ctx context.Context, repoID string, query []float32, topK int) ([]Hit, error)
}
