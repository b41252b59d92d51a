package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/storetest"
)

func newTestStorage(t *testing.T, path string) *Storage {
	t.Helper()
	s, err := NewStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Storage {
		return newTestStorage(t, filepath.Join(t.TempDir(), "index.db"))
	})
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	s1, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s1.Init(ctx, 2))
	require.NoError(t, s1.Upsert(ctx, []vectorstore.Record{{
		ID:     "a",
		Unit:   domain.TextUnit{Content: "kept", Metadata: domain.Metadata{Source: "a.pdf", Page: 4, Kind: domain.KindTable}},
		Vector: []float32{0.6, 0.8},
	}}))
	require.NoError(t, s1.Close())

	s2 := newTestStorage(t, path)
	require.NoError(t, s2.Init(ctx, 2))
	res, err := s2.Search(ctx, []float32{0.6, 0.8}, 1)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "kept", res[0].Unit.Content)
	assert.Equal(t, domain.KindTable, res[0].Unit.Metadata.Kind)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestStorage_DimensionChangeResets(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []vectorstore.Record{{ID: "a", Vector: []float32{1, 0}}}))

	require.NoError(t, s.Init(ctx, 3))
	res, err := s.Search(ctx, []float32{1, 0, 0}, 5)

	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_NotInitialised(t *testing.T) {
	s := newTestStorage(t, filepath.Join(t.TempDir(), "index.db"))
	assert.ErrorIs(t, s.Upsert(context.Background(), nil), domain.ErrNotInitialized)
}

func TestFloat32Encoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4e-5}
	assert.Equal(t, v, bytesToFloat32Slice(float32SliceToBytes(v)))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
