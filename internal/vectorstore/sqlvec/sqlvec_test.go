package sqlvec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dim int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "vec.db"), dim)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestDeleteOnEmptyStore(t *testing.T) {
	// dimension unknown, no Upsert yet, so no tables exist
	s := newStore(t, 0)
	assert.NoError(t, s.Delete(context.Background(), "never-stored"))
}

func TestSearchOnEmptyStore(t *testing.T) {
	s := newStore(t, 0)
	hits, err := s.Search(context.Background(), "repo", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertSearchDelete(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "v1", "repo", []float32{1, 0, 0}))
	require.NoError(t, s.Upsert(ctx, "v2", "repo", []float32{0, 1, 0}))

	hits, err := s.Search(ctx, "repo", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "v1", hits[0].VectorID)

	require.NoError(t, s.Delete(ctx, "v1"))
	require.NoError(t, s.Delete(ctx, "v1"), "repeated delete stays idempotent")
}
