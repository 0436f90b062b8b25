// Package config holds the application configuration, loadable from a
// TOML file with flag overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultEmbedURL   = "http://localhost:8000/embed"
	DefaultEmbedModel = "all-MiniLM-L6-v2"
)

type Config struct {
	DBPath          string `toml:"db_path"`
	EmbedURL        string `toml:"embed_url"`
	EmbedModel      string `toml:"embed_model"`
	VectorDimension int    `toml:"vector_dimension"`
	MaxChunkLines   int    `toml:"max_chunk_lines"`
	EmbedBatchSize  int    `toml:"embed_batch_size"`
	EmbedFanOut     int    `toml:"embed_fan_out"`
	RetryAttempts   int    `toml:"retry_attempts"`
	RetryBaseMs     int    `toml:"retry_base_ms"`
	RetryMaxMs      int    `toml:"retry_max_ms"`
	TopK            int    `toml:"top_k"`
	CacheSize       int    `toml:"cache_size"`
	RetainHistory   bool   `toml:"retain_history"`
	Verbose         bool   `toml:"verbose"`
}

func Default() Config {
	return Config{
		DBPath:     filepath.Join(os.TempDir(), "repoctx.db"),
		EmbedURL:   DefaultEmbedURL,
		EmbedModel: DefaultEmbedModel,
		// dimension 0 is inferred from the first embedding response
		VectorDimension: 0,
		TopK:            10,
	}
}

// Load reads a TOML config file over the defaults. A missing file is
// not an error; it just yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
