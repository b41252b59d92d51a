// Package sqlite stores embedded units in a single SQLite file and searches
// them by brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS units (
	id        TEXT PRIMARY KEY,
	source    TEXT NOT NULL,
	page      INTEGER NOT NULL DEFAULT 0,
	kind      TEXT NOT NULL,
	content   TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_units_source ON units(source);
`

// Storage is a SQLite-backed vector store.
type Storage struct {
	db   *sql.DB
	path string

	mu        sync.RWMutex
	dimension int
}

// NewStorage opens (creating if needed) the database at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

// Init creates the schema and records the dimension. Existing units with a
// different dimension are discarded.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if err := vectorstore.CheckDimension(dimension); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	}
	if stored != strconv.Itoa(dimension) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, `DELETE FROM units`); err != nil {
			return fmt.Errorf("resetting units: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(dimension)); err != nil {
			return fmt.Errorf("writing dimension: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) dim() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension == 0 {
		return 0, domain.ErrNotInitialized
	}
	return s.dimension, nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	dim, err := s.dim()
	if err != nil {
		return err
	}
	if err := vectorstore.CheckRecords(records, dim); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO units (id, source, page, kind, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		m := r.Unit.Metadata
		if _, err := stmt.ExecContext(ctx, r.ID, m.Source, m.Page, string(m.Kind), r.Unit.Content, float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("upserting %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	dim, err := s.dim()
	if err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(vector, dim); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, source, page, kind, content, embedding FROM units`)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			id, source, kind, content string
			page                      int
			blob                      []byte
		)
		if err := rows.Scan(&id, &source, &page, &kind, &content, &blob); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		results = append(results, domain.SearchResult{
			ID: id,
			Unit: domain.TextUnit{
				Content:  content,
				Metadata: domain.Metadata{Source: source, Page: page, Kind: domain.Kind(kind)},
			},
			Score: vectorstore.Cosine(bytesToFloat32Slice(blob), vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) DeleteBySource(ctx context.Context, source string, keep ...string) error {
	if _, err := s.dim(); err != nil {
		return err
	}
	query := `DELETE FROM units WHERE source = ?`
	args := []any{source}
	if len(keep) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting source %s: %w", source, err)
	}
	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.dim(); errors.Is(err, domain.ErrNotInitialized) {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM units`)
	return err
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// float32SliceToBytes encodes a vector as little-endian IEEE 754 values.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
