// Package memory serves file snapshots from maps, keyed by repository
// and commit. Used by tests to stage exact tree states per commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/models"
)

type snapKey struct {
	repoID string
	commit string
}

type Provider struct {
	mu    sync.RWMutex
	snaps map[snapKey][]models.FileEntry
}

func New() *Provider {
	return &Provider{snaps: make(map[snapKey][]models.FileEntry)}
}

// SetSnapshot stages the full file set of one repository commit,
// replacing any prior staging for that commit.
func (p *Provider) SetSnapshot(repoID, commit string, files []models.FileEntry) {
	cp := make([]models.FileEntry, len(files))
	copy(cp, files)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Path < cp[j].Path })
	p.mu.Lock()
	p.snaps[snapKey{repoID, commit}] = cp
	p.mu.Unlock()
}

func (p *Provider) ListFiles(_ context.Context, repoID, commit string) ([]models.FileEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	files, ok := p.snaps[snapKey{repoID, commit}]
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s@%s", content.ErrUnreachable, repoID, commit)
	}
	out := make([]models.FileEntry, len(files))
	copy(out, files)
	return out, nil
}

var _ content.Provider = (*Provider)(nil)
