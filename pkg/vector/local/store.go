// Package local is a file-backed vector store on SQLite. Search is an exact
// cosine scan over the collection.
package local

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/vector"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dim  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	collection  TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	content     TEXT NOT NULL,
	source      TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	type        TEXT NOT NULL,
	vector      BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// Store keeps one named collection in a SQLite database file
type Store struct {
	db         *sql.DB
	path       string
	collection string
}

var _ vector.Store = (*Store)(nil)

// Open opens or creates the database at path
func Open(path, collection string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("Opened local vector store %s", path)
	return &Store{db: db, path: path, collection: collection}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the collection row is present
func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, err := s.dim(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, vector.ErrCollectionNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) dim(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, "SELECT dim FROM collections WHERE name = ?", s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, vector.ErrCollectionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying collection: %w", err)
	}
	return dim, nil
}

// Recreate drops the collection and its points and creates it again
func (s *Store) Recreate(ctx context.Context, dim int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO collections (name, dim) VALUES (?, ?)", s.collection, dim); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return tx.Commit()
}

// Upsert inserts or replaces points in one transaction
func (s *Store) Upsert(ctx context.Context, records []models.Record, vectors [][]float32) error {
	dim, err := s.dim(ctx)
	if err != nil {
		return err
	}
	if err := vector.CheckUpsert(records, vectors, dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, content, source, page_number, type, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			source = excluded.source,
			page_number = excluded.page_number,
			type = excluded.type,
			vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx, s.collection, r.ID, r.Content,
			r.Metadata.Source, r.Metadata.PageNumber, r.Metadata.Type, float32SliceToBytes(vectors[i]))
		if err != nil {
			return fmt.Errorf("upserting point %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Search scans every point of the collection
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	if _, err := s.dim(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, page_number, type, vector
		FROM points WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var (
		records []models.Record
		vectors [][]float32
	)
	for rows.Next() {
		var (
			r    models.Record
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata.Source, &r.Metadata.PageNumber, &r.Metadata.Type, &blob); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		records = append(records, r)
		vectors = append(vectors, bytesToFloat32Slice(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	return vector.Rank(query, records, vectors, k), nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
