// Package fs reads repository snapshots from a local working tree.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/logger"
	"github.com/repoctx/repoctx/internal/models"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	".next":        true,
}

// maxFileSize caps how much of a single file indexing will read.
const maxFileSize = 2 << 20

// Provider walks registered repository roots. The caller registers a
// root per repository id before starting a run; the commit argument
// names the snapshot but the walk always reads the tree as it is.
type Provider struct {
	mu    sync.RWMutex
	roots map[string]string
}

func New() *Provider {
	return &Provider{roots: make(map[string]string)}
}

// Register binds a repository id to a directory root.
func (p *Provider) Register(repoID, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", content.ErrUnreachable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", content.ErrUnreachable, abs)
	}
	p.mu.Lock()
	p.roots[repoID] = abs
	p.mu.Unlock()
	return nil
}

func (p *Provider) ListFiles(ctx context.Context, repoID, _ string) ([]models.FileEntry, error) {
	p.mu.RLock()
	root, ok := p.roots[repoID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no root registered for repository %s", content.ErrUnreachable, repoID)
	}

	var entries []models.FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (d.Name() != "." && strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(rel) > models.MaxPathLen {
			logger.Warn("skipping file with oversized path: %s", rel)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxFileSize {
			logger.Debug("skipping oversized file %s (%d bytes)", rel, info.Size())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entry := models.FileEntry{Path: rel}
		if isBinary(data) {
			entry.IsBinary = true
		} else {
			entry.Text = string(data)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", content.ErrUnreachable, err)
	}
	return entries, nil
}

// isBinary applies the NUL byte sniff to the first 8000 bytes.
func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

var _ content.Provider = (*Provider)(nil)
