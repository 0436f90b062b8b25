package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEmbedURL, cfg.EmbedURL)
	assert.Equal(t, DefaultEmbedModel, cfg.EmbedModel)
	assert.Equal(t, 10, cfg.TopK)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repoctx.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path = "/data/index.db"
embed_url = "http://embed:9000/embed"
max_chunk_lines = 120
retain_history = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/index.db", cfg.DBPath)
	assert.Equal(t, "http://embed:9000/embed", cfg.EmbedURL)
	assert.Equal(t, 120, cfg.MaxChunkLines)
	assert.True(t, cfg.RetainHistory)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultEmbedModel, cfg.EmbedModel)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("db_path = [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
