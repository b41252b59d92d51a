package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Storage { return NewStorage() })
}

func TestStorage_NotInitialised(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	assert.ErrorIs(t, s.Upsert(ctx, nil), domain.ErrNotInitialized)
	_, err := s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.ErrorIs(t, s.DeleteBySource(ctx, "a"), domain.ErrNotInitialized)
}

func TestStorage_ReinitKeepsRecordsForSameDimension(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []vectorstore.Record{{ID: "a", Vector: []float32{1, 0}}}))

	require.NoError(t, s.Init(ctx, 2))
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Init(ctx, 3))
	assert.Equal(t, 0, s.Len())
}
