// Package bolt stores embedded units in a bbolt file and searches them by
// brute-force cosine similarity.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var (
	bucketUnits = []byte("units")
	bucketMeta  = []byte("meta")
	keyDim      = []byte("dimension")
)

type storedUnit struct {
	Unit   domain.TextUnit `json:"unit"`
	Vector []float32       `json:"vector"`
}

// Storage is a bbolt-backed vector store.
type Storage struct {
	db *bbolt.DB
}

// NewStorage opens (creating if needed) the bbolt file at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty bolt path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

// Init creates the buckets and records the dimension. Existing units with a
// different dimension are discarded.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if err := vectorstore.CheckDimension(dimension); err != nil {
		return err
	}
	want := []byte(strconv.Itoa(dimension))
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if string(meta.Get(keyDim)) != string(want) {
			if tx.Bucket(bucketUnits) != nil {
				if err := tx.DeleteBucket(bucketUnits); err != nil {
					return err
				}
			}
		}
		if _, err := tx.CreateBucketIfNotExists(bucketUnits); err != nil {
			return err
		}
		return meta.Put(keyDim, want)
	})
}

func dimension(tx *bbolt.Tx) (int, error) {
	meta := tx.Bucket(bucketMeta)
	if meta == nil || tx.Bucket(bucketUnits) == nil {
		return 0, domain.ErrNotInitialized
	}
	return strconv.Atoi(string(meta.Get(keyDim)))
}

func (s *Storage) Upsert(_ context.Context, records []vectorstore.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dim, err := dimension(tx)
		if err != nil {
			return err
		}
		if err := vectorstore.CheckRecords(records, dim); err != nil {
			return err
		}
		b := tx.Bucket(bucketUnits)
		for _, r := range records {
			data, err := json.Marshal(storedUnit{Unit: r.Unit, Vector: r.Vector})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		dim, err := dimension(tx)
		if err != nil {
			return err
		}
		if err := vectorstore.CheckQuery(vector, dim); err != nil {
			return err
		}
		return tx.Bucket(bucketUnits).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var su storedUnit
			if err := json.Unmarshal(v, &su); err != nil {
				return fmt.Errorf("decoding unit %s: %w", k, err)
			}
			results = append(results, domain.SearchResult{
				ID:    string(k),
				Unit:  su.Unit,
				Score: vectorstore.Cosine(su.Vector, vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) DeleteBySource(_ context.Context, source string, keep ...string) error {
	kept := vectorstore.KeepSet(keep)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := dimension(tx); err != nil {
			return err
		}
		b := tx.Bucket(bucketUnits)
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := kept[string(k)]; ok {
				return nil
			}
			var su storedUnit
			if err := json.Unmarshal(v, &su); err != nil {
				return fmt.Errorf("decoding unit %s: %w", k, err)
			}
			if su.Unit.Metadata.Source == source {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUnits) == nil {
			return nil
		}
		if err := tx.DeleteBucket(bucketUnits); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketUnits)
		return err
	})
}

func (s *Storage) Close() error {
	return s.db.Close()
}
