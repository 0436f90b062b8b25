package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable marks a transient embedding failure (service down,
// timeout, throttling). Callers may retry with backoff.
var ErrUnavailable = errors.New("embedding service unavailable")

// ErrRejected marks a permanent embedding failure (input too long,
// unknown model). Retrying will not help.
var ErrRejected = errors.New("embedding input rejected")

// Retryable reports whether an embedding error is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

type Embedder interface {
	// EmbedBatch converts chunk texts to vectors, one per input, all
	// with the same dimension.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery converts a retrieval query to a vector using the same
	// model as indexing.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model.
	Model() string
	// Dimension is the vector dimension, 0 until known.
	Dimension() int
}
