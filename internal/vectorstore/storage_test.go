package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/domain"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestTopK(t *testing.T) {
	in := []domain.SearchResult{
		{ID: "b", Score: 0.5},
		{ID: "a", Score: 0.9},
		{ID: "c", Score: 0.5},
		{ID: "d", Score: 0.1},
	}

	got := TopK(in, 3)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestTopK_DefaultAndShort(t *testing.T) {
	in := make([]domain.SearchResult, 8)
	assert.Len(t, TopK(in, 0), DefaultTopK)
	assert.Len(t, TopK(in[:2], 10), 2)
}

func TestChecks(t *testing.T) {
	assert.ErrorIs(t, CheckDimension(0), domain.ErrInvalidDimension)
	assert.NoError(t, CheckDimension(3))

	assert.ErrorIs(t, CheckRecords([]Record{{ID: "x", Vector: []float32{1}}}, 2), domain.ErrDimensionMismatch)
	assert.ErrorIs(t, CheckRecords([]Record{{Vector: []float32{1, 2}}}, 2), domain.ErrInvalidInput)
	assert.NoError(t, CheckRecords([]Record{{ID: "x", Vector: []float32{1, 2}}}, 2))

	assert.ErrorIs(t, CheckQuery([]float32{1}, 2), domain.ErrDimensionMismatch)
}
