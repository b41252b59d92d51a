package pdfdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ruledTablePDF = "testdata/ruled_table.pdf"

func TestOpen_RuledTableFixture(t *testing.T) {
	doc, err := Open(ruledTablePDF)
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.NumPages())

	page, err := doc.Page(0)
	require.NoError(t, err)

	tables := page.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Header", "Col A"}, {"Row1", "X"}}, tables[0].Cells)
	assert.InDelta(t, 100, tables[0].Bounds.X0, 0.5)
	assert.InDelta(t, 660, tables[0].Bounds.Y0, 0.5)
	assert.InDelta(t, 300, tables[0].Bounds.X1, 0.5)
	assert.InDelta(t, 700, tables[0].Bounds.Y1, 0.5)

	clip := page.ClipText(tables[0].Bounds)
	assert.Equal(t, "Header Col A\nRow1 X\n", clip)
	assert.Contains(t, page.Text(), clip)
	assert.Contains(t, page.Text(), "Intro text\n")
	assert.Contains(t, page.Text(), "a. Term\n")

	second, err := doc.Page(1)
	require.NoError(t, err)
	assert.Empty(t, second.Tables())
	assert.Equal(t, "Dental care is excluded.\n", second.Text())
}

func TestOpen_PageOutOfRange(t *testing.T) {
	doc, err := Open(ruledTablePDF)
	require.NoError(t, err)
	defer doc.Close()

	_, err = doc.Page(2)
	assert.Error(t, err)
	_, err = doc.Page(-1)
	assert.Error(t, err)
}

func TestOpen_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	doc, err := Open(path)

	assert.Error(t, err)
	assert.Nil(t, doc)
}
