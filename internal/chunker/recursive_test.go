package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		assert.Equal(t, DefaultChunkSize, c.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, c.overlap)
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		c := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, c.overlap, c.chunkSize)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, c.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, c.overlap)
	})
}

func TestChunk_ShortUnitsPassThrough(t *testing.T) {
	units := []domain.TextUnit{
		{Content: "For the benefit 'Gold', the value under 'Premium' is '1200'.", Metadata: domain.Metadata{Source: "a.pdf", Page: 1, Kind: domain.KindTable}},
		{Content: "a.\nClaims are settled in 30 days", Metadata: domain.Metadata{Source: "a.pdf", Page: 2, Kind: domain.KindClause}},
	}

	assert.Equal(t, units, New().Chunk(units))
}

func TestChunk_BlankUnitsDropped(t *testing.T) {
	units := []domain.TextUnit{{Content: "  \n\t"}, {Content: ""}, {Content: "kept"}}

	got := New().Chunk(units)

	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
}

func TestChunk_WordWindowsWithOverlap(t *testing.T) {
	meta := domain.Metadata{Source: "notes.txt", Kind: domain.KindPlainText}
	c := New(WithChunkSize(10), WithOverlap(5))

	got := c.Chunk([]domain.TextUnit{{Content: "aaaa bbbb cccc dddd", Metadata: meta}})

	require.Len(t, got, 3)
	assert.Equal(t, "aaaa bbbb", got[0].Content)
	assert.Equal(t, "bbbb cccc", got[1].Content)
	assert.Equal(t, "cccc dddd", got[2].Content)
	for _, u := range got {
		assert.Equal(t, meta, u.Metadata)
	}
}

func TestChunk_FallsBackToCharacters(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(2))

	got := c.Chunk([]domain.TextUnit{{Content: "abcdefghijklmnopqrstuvwxy"}})

	var contents []string
	for _, u := range got {
		contents = append(contents, u.Content)
	}
	assert.Equal(t, []string{"abcdefghij", "ijklmnopqr", "qrstuvwxy"}, contents)
}

func TestChunk_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 8)
	para2 := strings.Repeat("beta ", 8)
	c := New(WithChunkSize(60), WithOverlap(0))

	got := c.Chunk([]domain.TextUnit{{Content: para1 + "\n\n" + para2}})

	require.Len(t, got, 2)
	assert.Equal(t, strings.TrimSpace(para1), got[0].Content)
	assert.Equal(t, strings.TrimSpace(para2), got[1].Content)
}

func TestChunk_WindowsRespectSizeAndAreDeterministic(t *testing.T) {
	text := strings.Repeat("Hospitalisation expenses are covered up to the sum insured. ", 40) +
		"\n\n" + strings.Repeat("Pre-existing diseases are covered after 36 months.\n", 20)
	units := []domain.TextUnit{{Content: text, Metadata: domain.Metadata{Source: "p.pdf", Page: 7, Kind: domain.KindClause}}}
	c := New(WithChunkSize(200), WithOverlap(40))

	first := c.Chunk(units)
	second := c.Chunk(units)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	for _, u := range first {
		assert.LessOrEqual(t, utf8.RuneCountInString(u.Content), 200)
		assert.NotEmpty(t, strings.TrimSpace(u.Content))
		assert.Equal(t, 7, u.Metadata.Page)
	}
}

func TestChunk_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 10)
	c := New(WithChunkSize(10), WithOverlap(0))

	got := c.Chunk([]domain.TextUnit{{Content: text}})

	require.Len(t, got, 1)
	assert.Equal(t, text, got[0].Content)
}
