// Package memory is an in-process vector store used in tests and as a
// reference implementation of the store contract.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/repoctx/repoctx/internal/vectorstore"
)

type item struct {
	repoID string
	vec    []float32
}

type Store struct {
	mu   sync.RWMutex
	data map[string]item // vector id -> payload
}

func New() *Store {
	return &Store{data: make(map[string]item)}
}

func (s *Store) Upsert(_ context.Context, vectorID, repoID string, vec []float32) error {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[vectorID] = item{repoID: repoID, vec: cp}
	return nil
}

func (s *Store) Delete(_ context.Context, vectorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, vectorID)
	return nil
}

func (s *Store) Search(_ context.Context, repoID string, query []float32, topK int) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []vectorstore.Hit
	for id, it := range s.data {
		if it.repoID != repoID {
			continue
		}
		hits = append(hits, vectorstore.Hit{VectorID: id, Score: cosine(it.vec, query)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].VectorID < hits[j].VectorID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Has reports whether a vector id is present; used by tests that
// cross-check the catalog against the store.
func (s *Store) Has(vectorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[vectorID]
	return ok
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cosine(a, b []float32) float32 {
	var dot float64
	var na float64
	var nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0
	}
	return float32(dot / den)
}

var _ vectorstore.Store = (*Store)(nil)
