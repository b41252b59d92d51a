package memory

import (
	"context"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]vectorstore.Record
}

// NewStorage creates an empty, uninitialised store.
func NewStorage() *Storage { return &Storage{} }

// Init sets the dimension. Records survive re-initialisation with the same
// dimension; a different dimension drops them.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if err := vectorstore.CheckDimension(dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil || s.dimension != dimension {
		s.records = make(map[string]vectorstore.Record)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return domain.ErrNotInitialized
	}
	if err := vectorstore.CheckRecords(records, s.dimension); err != nil {
		return err
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.records[r.ID] = r
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.records == nil {
		return nil, domain.ErrNotInitialized
	}
	if err := vectorstore.CheckQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(s.records))
	for id, r := range s.records {
		results = append(results, domain.SearchResult{ID: id, Unit: r.Unit, Score: vectorstore.Cosine(r.Vector, vector)})
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) DeleteBySource(_ context.Context, source string, keep ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return domain.ErrNotInitialized
	}
	kept := vectorstore.KeepSet(keep)
	for id, r := range s.records {
		if _, ok := kept[id]; ok {
			continue
		}
		if r.Unit.Metadata.Source == source {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records != nil {
		s.records = make(map[string]vectorstore.Record)
	}
	return nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Close() error { return nil }
