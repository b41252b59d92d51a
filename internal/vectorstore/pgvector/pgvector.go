// Package pgvector stores embedded units in PostgreSQL with the pgvector
// extension and lets the database rank them by cosine distance.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "docqa_units"

// Config configures the PostgreSQL store.
type Config struct {
	DSN   string
	Table string
}

// Storage is a pgvector-backed vector store.
type Storage struct {
	pool  *pgxpool.Pool
	table string
	ident string

	mu        sync.RWMutex
	dimension int
}

// NewStorage connects to the database. The vector type is registered on
// every pooled connection once the extension exists.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		err := pgxvec.RegisterTypes(ctx, conn)
		if err != nil && strings.Contains(err.Error(), "vector type not found") {
			return nil
		}
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Storage{
		pool:  pool,
		table: cfg.Table,
		ident: pgx.Identifier{cfg.Table}.Sanitize(),
	}, nil
}

// Init creates the extension and table. A table built for another dimension
// is dropped and recreated.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if err := vectorstore.CheckDimension(dimension); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating extension: %w", err)
	}
	// Connections opened before the extension existed lack the vector codec.
	s.pool.Reset()

	var current int
	err := s.pool.QueryRow(ctx, `
		SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding'`, s.table).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("inspecting table: %w", err)
	case current != dimension:
		if _, err := s.pool.Exec(ctx, `DROP TABLE `+s.ident); err != nil {
			return fmt.Errorf("dropping table: %w", err)
		}
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			source    TEXT NOT NULL,
			page      INTEGER NOT NULL DEFAULT 0,
			kind      TEXT NOT NULL,
			content   TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.ident, dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	idx := pgx.Identifier{s.table + "_source_idx"}.Sanitize()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (source)`, idx, s.ident)); err != nil {
		return fmt.Errorf("creating index: %w", err)
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, kind, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source, page = EXCLUDED.page, kind = EXCLUDED.kind,
			content = EXCLUDED.content, embedding = EXCLUDED.embedding`, s.ident)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			m := r.Unit.Metadata
			batch.Queue(query, r.ID, m.Source, m.Page, string(m.Kind), r.Unit.Content, pgvector.NewVector(r.Vector))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	dim, err := s.dim()
	if err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(vector, dim); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, source, page, kind, content, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2`, s.ident), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r    domain.SearchResult
			kind string
		)
		m := &r.Unit.Metadata
		if err := rows.Scan(&r.ID, &m.Source, &m.Page, &kind, &r.Unit.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		m.Kind = domain.Kind(kind)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Storage) DeleteBySource(ctx context.Context, source string, keep ...string) error {
	if _, err := s.dim(); err != nil {
		return err
	}
	if keep == nil {
		keep = []string{}
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE source = $1 AND NOT (id = ANY($2))`, s.ident)
	if _, err := s.pool.Exec(ctx, query, source, keep); err != nil {
		return fmt.Errorf("deleting source %s: %w", source, err)
	}
	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.dim(); errors.Is(err, domain.ErrNotInitialized) {
		return nil
	}
	_, err := s.pool.Exec(ctx, `TRUNCATE `+s.ident)
	return err
}

// Drop removes the table. Used by tests to clean up.
func (s *Storage) Drop(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+s.ident)
	return err
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}
