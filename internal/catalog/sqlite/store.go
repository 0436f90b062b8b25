// Package sqlite implements the chunk catalog on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Upsert(ctx context.Context, ch models.Chunk) error {
	if err := validate(ch); err != nil {
		return err
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO chunks(
		repo_id, path, start_line, end_line, commit_hash,
		symbol_fqn, symbol_kind, source_type, content_hash,
		vector_id, embed_model, embed_dim, created_at, embedded_at
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(repo_id, path, start_line, end_line, commit_hash) DO UPDATE SET
		symbol_fqn=excluded.symbol_fqn,
		symbol_kind=excluded.symbol_kind,
		source_type=excluded.source_type,
		content_hash=excluded.content_hash,
		vector_id=excluded.vector_id,
		embed_model=excluded.embed_model,
		embed_dim=excluded.embed_dim,
		embedded_at=excluded.embedded_at`,
		ch.RepoID, ch.Path, ch.StartLine, ch.EndLine, ch.Commit,
		nullString(ch.SymbolFQN), string(ch.SymbolKind), string(ch.Source), ch.ContentHash,
		nullString(ch.VectorID), nullString(ch.EmbedModel), nullInt(ch.EmbedDim),
		ch.CreatedAt, nullTime(ch.EmbeddedAt),
	)
	return err
}

func validate(ch models.Chunk) error {
	if ch.RepoID == "" {
		return fmt.Errorf("chunk repo id must not be empty")
	}
	if ch.Path == "" || len(ch.Path) > models.MaxPathLen {
		return fmt.Errorf("chunk path invalid: %q", ch.Path)
	}
	if ch.StartLine < 1 || ch.EndLine < ch.StartLine {
		return fmt.Errorf("chunk line range invalid: %d-%d", ch.StartLine, ch.EndLine)
	}
	if !models.ValidCommit(ch.Commit) {
		return fmt.Errorf("chunk commit invalid: %q", ch.Commit)
	}
	if ch.VectorID != "" && (ch.EmbedModel == "" || ch.EmbedDim <= 0) {
		return fmt.Errorf("chunk with vector id requires embed model and dimension")
	}
	return nil
}

const chunkColumns = `repo_id, path, start_line, end_line, commit_hash,
	symbol_fqn, symbol_kind, source_type, content_hash,
	vector_id, embed_model, embed_dim, created_at, embedded_at`

func (s *Store) FindByLocation(ctx context.Context, repoID string, loc catalog.Location, commit string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE repo_id = ? AND path = ? AND start_line = ? AND end_line = ? AND commit_hash = ?`,
		repoID, loc.Path, loc.StartLine, loc.EndLine, commit)
	return scanChunk(row)
}

func (s *Store) FindByVectorID(ctx context.Context, repoID, vectorID, commit string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE repo_id = ? AND vector_id = ? AND commit_hash = ?
		ORDER BY path, start_line LIMIT 1`,
		repoID, vectorID, commit)
	return scanChunk(row)
}

func (s *Store) ListByCommit(ctx context.Context, repoID, commit string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE repo_id = ? AND commit_hash = ?
		ORDER BY path, start_line`, repoID, commit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.Chunk
	for rows.Next() {
		ch, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Store) ListCommits(ctx context.Context, repoID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT commit_hash FROM chunks WHERE repo_id = ? ORDER BY commit_hash`, repoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var commit string
		if err := rows.Scan(&commit); err != nil {
			return nil, err
		}
		out = append(out, commit)
	}
	return out, rows.Err()
}

func (s *Store) DeleteByLocation(ctx context.Context, repoID string, loc catalog.Location, commit string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks
		WHERE repo_id = ? AND path = ? AND start_line = ? AND end_line = ? AND commit_hash = ?`,
		repoID, loc.Path, loc.StartLine, loc.EndLine, commit)
	return err
}

func (s *Store) CountByVectorID(ctx context.Context, repoID, vectorID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE repo_id = ? AND vector_id = ?`,
		repoID, vectorID).Scan(&n)
	return n, err
}

func (s *Store) PurgeCommit(ctx context.Context, repoID, commit string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE repo_id = ? AND commit_hash = ?`, repoID, commit)
	return err
}

func (s *Store) EmbeddedModel(ctx context.Context, repoID, commit string) (string, int, error) {
	var model sql.NullString
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT embed_model, embed_dim FROM chunks
		WHERE repo_id = ? AND commit_hash = ? AND vector_id IS NOT NULL
		LIMIT 1`, repoID, commit).Scan(&model, &dim)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return model.String, int(dim.Int64), nil
}

func (s *Store) LastIndexedCommit(ctx context.Context, repoID string) (string, error) {
	var commit string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_indexed_commit FROM repositories WHERE id = ?`, repoID).Scan(&commit)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return commit, err
}

func (s *Store) SetLastIndexedCommit(ctx context.Context, repoID, commit string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO repositories(id, last_indexed_commit, updated_at)
		VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			last_indexed_commit=excluded.last_indexed_commit,
			updated_at=CURRENT_TIMESTAMP`, repoID, commit)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row *sql.Row) (*models.Chunk, error) {
	ch, err := scanChunkRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func scanChunkRow(r rowScanner) (models.Chunk, error) {
	var ch models.Chunk
	var fqn, vectorID, model sql.NullString
	var dim sql.NullInt64
	var kind, source string
	var embeddedAt sql.NullTime
	err := r.Scan(
		&ch.RepoID, &ch.Path, &ch.StartLine, &ch.EndLine, &ch.Commit,
		&fqn, &kind, &source, &ch.ContentHash,
		&vectorID, &model, &dim, &ch.CreatedAt, &embeddedAt,
	)
	if err != nil {
		return ch, err
	}
	ch.SymbolFQN = fqn.String
	ch.SymbolKind = models.StringToSymbolKind(kind)
	ch.Source = models.SourceType(source)
	ch.VectorID = vectorID.String
	ch.EmbedModel = model.String
	ch.EmbedDim = int(dim.Int64)
	if embeddedAt.Valid {
		t := embeddedAt.Time
		ch.EmbeddedAt = &t
	}
	return ch, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

var _ catalog.Catalog = (*Store)(nil)
