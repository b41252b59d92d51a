// Package storetest holds the behaviour every vectorstore.Storage backend
// must share, runnable against any of them.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Factory returns a fresh, uninitialised store. Cleanup is the caller's job.
type Factory func(t *testing.T) vectorstore.Storage

func record(id, source string, page int, v ...float32) vectorstore.Record {
	return vectorstore.Record{
		ID: id,
		Unit: domain.TextUnit{
			Content:  "unit " + id,
			Metadata: domain.Metadata{Source: source, Page: page, Kind: domain.KindClause},
		},
		Vector: v,
	}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}

// Run exercises the Storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("InvalidDimension", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Init(ctx, 0), domain.ErrInvalidDimension)
	})

	t.Run("UpsertAndSearch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 3))
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{
			record("11111111-0000-0000-0000-000000000001", "uploads/a.pdf", 1, 1, 0, 0),
			record("11111111-0000-0000-0000-000000000002", "uploads/a.pdf", 2, 0, 1, 0),
			record("11111111-0000-0000-0000-000000000003", "uploads/b.txt", 0, 0.9, 0.1, 0),
		}))

		res, err := s.Search(ctx, []float32{1, 0, 0}, 2)

		require.NoError(t, err)
		assert.Equal(t, []string{
			"11111111-0000-0000-0000-000000000001",
			"11111111-0000-0000-0000-000000000003",
		}, ids(res))
		assert.InDelta(t, 1.0, res[0].Score, 1e-4)
		assert.Greater(t, res[0].Score, res[1].Score)
		assert.Equal(t, domain.TextUnit{
			Content:  "unit 11111111-0000-0000-0000-000000000001",
			Metadata: domain.Metadata{Source: "uploads/a.pdf", Page: 1, Kind: domain.KindClause},
		}, res[0].Unit)
		assert.Equal(t, domain.Metadata{Source: "uploads/b.txt", Kind: domain.KindClause}, res[1].Unit.Metadata)
	})

	t.Run("UpsertReplacesSameID", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		id := "22222222-0000-0000-0000-000000000001"
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{record(id, "a.pdf", 1, 1, 0)}))
		replaced := record(id, "a.pdf", 3, 0, 1)
		replaced.Unit.Content = "replaced"
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{replaced}))

		res, err := s.Search(ctx, []float32{0, 1}, 10)

		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "replaced", res[0].Unit.Content)
		assert.Equal(t, 3, res[0].Unit.Metadata.Page)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		err := s.Upsert(ctx, []vectorstore.Record{record("33333333-0000-0000-0000-000000000001", "a.pdf", 1, 1, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		_, err = s.Search(ctx, []float32{1}, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("DeleteBySourceIsExact", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{
			record("44444444-0000-0000-0000-000000000001", "uploads/a.pdf", 1, 1, 0),
			record("44444444-0000-0000-0000-000000000002", "uploads/a.pdf", 2, 1, 1),
			record("44444444-0000-0000-0000-000000000003", "uploads/a.pdf.bak", 1, 1, 0),
			record("44444444-0000-0000-0000-000000000004", "other/uploads/a.pdf", 1, 0, 1),
		}))

		require.NoError(t, s.DeleteBySource(ctx, "uploads/a.pdf"))
		require.NoError(t, s.DeleteBySource(ctx, "uploads/missing.pdf"))

		res, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"44444444-0000-0000-0000-000000000003",
			"44444444-0000-0000-0000-000000000004",
		}, ids(res))
	})

	t.Run("DeleteBySourceSparesKept", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{
			record("66666666-0000-0000-0000-000000000001", "uploads/a.pdf", 1, 1, 0),
			record("66666666-0000-0000-0000-000000000002", "uploads/a.pdf", 2, 1, 1),
			record("66666666-0000-0000-0000-000000000003", "uploads/a.pdf", 3, 0, 1),
			record("66666666-0000-0000-0000-000000000004", "uploads/b.pdf", 1, 1, 0),
		}))

		require.NoError(t, s.DeleteBySource(ctx, "uploads/a.pdf",
			"66666666-0000-0000-0000-000000000001",
			"66666666-0000-0000-0000-000000000004"))

		res, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"66666666-0000-0000-0000-000000000001",
			"66666666-0000-0000-0000-000000000004",
		}, ids(res))
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []vectorstore.Record{record("55555555-0000-0000-0000-000000000001", "a.pdf", 1, 1, 0)}))

		require.NoError(t, s.Clear(ctx))

		res, err := s.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("SearchEmpty", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		res, err := s.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}
