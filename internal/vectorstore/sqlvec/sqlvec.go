// Package sqlvec implements the vector store on sqlite-vec. The vec0
// virtual table holds the embeddings; vec_map binds each vec0 rowid to
// the opaque vector id and its repository. No chunk metadata is stored
// here.
package sqlvec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/repoctx/repoctx/internal/vectorstore"
)

type Store struct {
	db        *sql.DB
	dimension int
}

func New(path string, dimension int) (*Store, error) {
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, dimension); err != nil {
		return nil, err
	}
	return &Store{db: db, dimension: dimension}, nil
}

func migrate(db *sql.DB, dim int) error {
	// vec0 dimension is fixed per table; if dim <= 0, defer creation
	// until the first Upsert when the dimension is known.
	if dim > 0 {
		if err := createVecTables(db, dim); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func createVecTables(e execer, dim int) error {
	if _, err := e.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
        embedding float32[%d]
    );`, dim)); err != nil {
		return err
	}
	if _, err := e.Exec(`CREATE TABLE IF NOT EXISTS vec_map (
        rid INTEGER UNIQUE NOT NULL,
        vector_id TEXT UNIQUE NOT NULL,
        repo_id TEXT NOT NULL
    );`); err != nil {
		return err
	}
	if _, err := e.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_vec_map_id ON vec_map(vector_id);`); err != nil {
		return err
	}
	_, err := e.Exec(`CREATE INDEX IF NOT EXISTS idx_vec_map_repo ON vec_map(repo_id);`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Upsert(ctx context.Context, vectorID, repoID string, vec []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapUnavailable(err)
	}
	if err := s.ensureVecTable(tx, len(vec)); err != nil {
		_ = tx.Rollback()
		return err
	}
	payload, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	var rid sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT rid FROM vec_map WHERE vector_id = ?`, vectorID).Scan(&rid)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return wrapUnavailable(err)
	}
	if rid.Valid {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO vec_embeddings(rowid, embedding) VALUES(?, ?)`, rid.Int64, payload,
		); err != nil {
			_ = tx.Rollback()
			return wrapUnavailable(err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `INSERT INTO vec_embeddings(embedding) VALUES(?)`, payload); err != nil {
			_ = tx.Rollback()
			return wrapUnavailable(err)
		}
		var newRid int64
		if err := tx.QueryRowContext(ctx, `SELECT last_insert_rowid()`).Scan(&newRid); err != nil {
			_ = tx.Rollback()
			return wrapUnavailable(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO vec_map(rid, vector_id, repo_id) VALUES(?, ?, ?)`, newRid, vectorID, repoID,
		); err != nil {
			_ = tx.Rollback()
			return wrapUnavailable(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Delete is idempotent: deleting an id that was never stored, or was
// already deleted, succeeds. A store that has never seen an Upsert has
// no tables yet and nothing to delete.
func (s *Store) Delete(ctx context.Context, vectorID string) error {
	ok, err := vecTablesExist(s.db)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapUnavailable(err)
	}
	var rid sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT rid FROM vec_map WHERE vector_id = ?`, vectorID).Scan(&rid)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.Commit()
	}
	if err != nil {
		_ = tx.Rollback()
		return wrapUnavailable(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rid.Int64); err != nil {
		_ = tx.Rollback()
		return wrapUnavailable(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_map WHERE rid = ?`, rid.Int64); err != nil {
		_ = tx.Rollback()
		return wrapUnavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, repoID string, query []float32, topK int) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	ok, err := vecTablesExist(s.db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	payload, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	// KNN via MATCH ... ORDER BY distance using sqlite-vec. The repo
	// filter runs on the joined map, so K is over-fetched and trimmed.
	rows, err := s.db.QueryContext(ctx, `
        WITH knn AS (
            SELECT rowid, distance
            FROM vec_embeddings
            WHERE embedding MATCH ?
            ORDER BY distance
            LIMIT ?
        )
        SELECT m.vector_id, k.distance
        FROM knn k
        JOIN vec_map m ON m.rid = k.rowid
        WHERE m.repo_id = ?
        ORDER BY k.distance ASC
        LIMIT ?
    `, payload, topK*4, repoID, topK)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer func() { _ = rows.Close() }()

	var hits []vectorstore.Hit
	for rows.Next() {
		var id string
		var distance float32
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		hits = append(hits, vectorstore.Hit{VectorID: id, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return hits, nil
}

func (s *Store) ensureVecTable(tx *sql.Tx, dim int) error {
	ok, err := vecTablesExist(tx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("cannot create vec_embeddings: unknown embedding dimension")
	}
	if err := createVecTables(tx, dim); err != nil {
		return err
	}
	s.dimension = dim
	return nil
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func vecTablesExist(q rowQuerier) (bool, error) {
	var name string
	err := q.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='vec_embeddings'`).
		Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapUnavailable(err)
	}
	return true, nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
}

var _ vectorstore.Store = (*Store)(nil)
