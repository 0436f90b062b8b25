// Package memory provides an in-memory catalog for tests and ephemeral
// runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/models"
)

type key struct {
	repoID    string
	path      string
	startLine int
	endLine   int
	commit    string
}

type Store struct {
	mu      sync.RWMutex
	chunks  map[key]models.Chunk
	commits map[string]string
}

func New() *Store {
	return &Store{
		chunks:  make(map[key]models.Chunk),
		commits: make(map[string]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Upsert(_ context.Context, ch models.Chunk) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[key{ch.RepoID, ch.Path, ch.StartLine, ch.EndLine, ch.Commit}] = ch
	return nil
}

func (s *Store) FindByLocation(_ context.Context, repoID string, loc catalog.Location, commit string) (*models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[key{repoID, loc.Path, loc.StartLine, loc.EndLine, commit}]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (s *Store) FindByVectorID(_ context.Context, repoID, vectorID, commit string) (*models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Chunk
	for _, ch := range s.chunks {
		if ch.RepoID != repoID || ch.Commit != commit || ch.VectorID != vectorID || vectorID == "" {
			continue
		}
		ch := ch
		if best == nil || ch.Path < best.Path ||
			(ch.Path == best.Path && ch.StartLine < best.StartLine) {
			best = &ch
		}
	}
	return best, nil
}

func (s *Store) ListByCommit(_ context.Context, repoID, commit string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Chunk
	for _, ch := range s.chunks {
		if ch.RepoID == repoID && ch.Commit == commit {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out, nil
}

func (s *Store) ListCommits(_ context.Context, repoID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for k := range s.chunks {
		if k.repoID == repoID && !seen[k.commit] {
			seen[k.commit] = true
			out = append(out, k.commit)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteByLocation(_ context.Context, repoID string, loc catalog.Location, commit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, key{repoID, loc.Path, loc.StartLine, loc.EndLine, commit})
	return nil
}

func (s *Store) CountByVectorID(_ context.Context, repoID, vectorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if vectorID == "" {
		return 0, nil
	}
	n := 0
	for _, ch := range s.chunks {
		if ch.RepoID == repoID && ch.VectorID == vectorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeCommit(_ context.Context, repoID, commit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.chunks {
		if k.repoID == repoID && k.commit == commit {
			delete(s.chunks, k)
		}
	}
	return nil
}

func (s *Store) EmbeddedModel(_ context.Context, repoID, commit string) (string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.chunks {
		if ch.RepoID == repoID && ch.Commit == commit && ch.VectorID != "" {
			return ch.EmbedModel, ch.EmbedDim, nil
		}
	}
	return "", 0, nil
}

func (s *Store) LastIndexedCommit(_ context.Context, repoID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits[repoID], nil
}

func (s *Store) SetLastIndexedCommit(_ context.Context, repoID, commit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[repoID] = commit
	return nil
}

var _ catalog.Catalog = (*Store)(nil)
