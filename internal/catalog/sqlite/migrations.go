package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion tracks the catalog schema version.
const CurrentSchemaVersion = "1.0.0"

// Migration represents a schema migration.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all migrations in order.
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Repository record: owns the "currently indexed commit" state read
-- by retrieval.
CREATE TABLE IF NOT EXISTS repositories (
    id TEXT PRIMARY KEY,
    last_indexed_commit TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Chunk catalog. One row per chunk version; a location observed at a
-- new commit gets a new row. vector_id is set only after the vector
-- store upsert succeeded, and then model and dimension must be set too.
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id TEXT NOT NULL,
    path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    commit_hash TEXT NOT NULL,
    symbol_fqn TEXT,
    symbol_kind TEXT NOT NULL DEFAULT 'unknown',
    source_type TEXT NOT NULL DEFAULT 'code',
    content_hash TEXT NOT NULL,
    vector_id TEXT,
    embed_model TEXT,
    embed_dim INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    embedded_at TIMESTAMP,
    UNIQUE(repo_id, path, start_line, end_line, commit_hash),
    CHECK (start_line >= 1 AND end_line >= start_line),
    CHECK (vector_id IS NULL OR (embed_model IS NOT NULL AND embed_dim IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_chunks_repo_commit ON chunks(repo_id, commit_hash);
CREATE INDEX IF NOT EXISTS idx_chunks_vector ON chunks(repo_id, vector_id);
CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(content_hash);
`

const migrationV1Down = `
DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS repositories;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var current *semver.Version
	if errors.Is(err, sql.ErrNoRows) {
		current = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var versionStr string
		err = db.QueryRowContext(ctx,
			"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&versionStr)
		if errors.Is(err, sql.ErrNoRows) || versionStr == "" {
			current = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			current, err = semver.NewVersion(versionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", versionStr, err)
			}
		}
	}

	for _, migration := range AllMigrations {
		version, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !current.LessThan(version) {
			continue // already applied
		}
		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		current = version
	}
	return nil
}
