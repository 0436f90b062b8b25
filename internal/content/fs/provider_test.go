package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/models"
)

const commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func listByPath(entries []models.FileEntry) map[string]models.FileEntry {
	out := make(map[string]models.FileEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = e
	}
	return out
}

func TestListFilesWalksTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", []byte("export function f() {}\n"))
	writeFile(t, root, "README.md", []byte("# readme\n"))

	p := New()
	require.NoError(t, p.Register("repo", root))

	entries, err := p.ListFiles(context.Background(), "repo", commitA)
	require.NoError(t, err)

	byPath := listByPath(entries)
	require.Len(t, byPath, 2)
	assert.Equal(t, "export function f() {}\n", byPath["src/app.ts"].Text)
	assert.False(t, byPath["README.md"].IsBinary)
}

func TestListFilesSkipsVendorDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.ts", []byte("code\n"))
	writeFile(t, root, "node_modules/dep/index.js", []byte("dep\n"))
	writeFile(t, root, ".git/HEAD", []byte("ref\n"))
	writeFile(t, root, "dist/bundle.js", []byte("built\n"))

	p := New()
	require.NoError(t, p.Register("repo", root))

	entries, err := p.ListFiles(context.Background(), "repo", commitA)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app.ts", entries[0].Path)
}

func TestListFilesFlagsBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "blob.bin", []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01})
	writeFile(t, root, "text.txt", []byte("plain text"))

	p := New()
	require.NoError(t, p.Register("repo", root))

	entries, err := p.ListFiles(context.Background(), "repo", commitA)
	require.NoError(t, err)

	byPath := listByPath(entries)
	require.Len(t, byPath, 2)
	assert.True(t, byPath["blob.bin"].IsBinary)
	assert.Empty(t, byPath["blob.bin"].Text)
	assert.False(t, byPath["text.txt"].IsBinary)
}

func TestListFilesUnregisteredRepo(t *testing.T) {
	p := New()
	_, err := p.ListFiles(context.Background(), "repo", commitA)
	assert.ErrorIs(t, err, content.ErrUnreachable)
}

func TestRegisterRejectsMissingRoot(t *testing.T) {
	p := New()
	err := p.Register("repo", filepath.Join(t.TempDir(), "does-not-exist"))
	assert.ErrorIs(t, err, content.ErrUnreachable)
}

func TestRegisterRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", []byte("x"))

	p := New()
	err := p.Register("repo", filepath.Join(root, "file.txt"))
	assert.ErrorIs(t, err, content.ErrUnreachable)
}
