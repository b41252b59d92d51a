// Package vectorstore defines the similarity index that stores embedded text
// units, and helpers shared by its backends.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docqa/internal/domain"
)

// DefaultTopK is the number of results returned when the caller asks for none.
const DefaultTopK = 5

// Record is one embedded unit as stored in the index.
type Record struct {
	ID     string
	Unit   domain.TextUnit
	Vector []float32
}

// Storage persists vectors and supports similarity search.
//
// Init must be called before any other method; it creates the backing
// collection if needed and fixes the vector dimension. Upsert replaces
// records with the same ID. DeleteBySource removes every record whose
// unit source equals source exactly, except the records whose IDs are in keep.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	DeleteBySource(ctx context.Context, source string, keep ...string) error
	Clear(ctx context.Context) error
	Close() error
}

// CheckDimension validates a dimension passed to Init.
func CheckDimension(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidDimension, dimension)
	}
	return nil
}

// CheckRecords validates records against the index dimension.
func CheckRecords(records []Record, dimension int) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %s has %d, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Vector), dimension)
		}
	}
	return nil
}

// KeepSet indexes the IDs passed to DeleteBySource.
func KeepSet(keep []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		set[id] = struct{}{}
	}
	return set
}

// CheckQuery validates a query vector against the index dimension.
func CheckQuery(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK sorts results by descending score, ties broken by ID, and keeps the
// first k. k <= 0 means DefaultTopK.
func TopK(results []domain.SearchResult, k int) []domain.SearchResult {
	if k <= 0 {
		k = DefaultTopK
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}
