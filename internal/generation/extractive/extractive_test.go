package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/prompt"
)

var passages = []string{
	"Maternity expenses are covered after a waiting period of 24 months.",
	"Ambulance charges are reimbursed up to 2000 per hospitalisation.",
	"a.\nRoom rent is capped at 1% of the sum insured",
}

func TestGenerate_PicksMatchingSentence(t *testing.T) {
	g := New(1)

	got, err := g.Generate(context.Background(), prompt.Build("What is the waiting period for maternity?", passages))

	require.NoError(t, err)
	assert.Equal(t, "Maternity expenses are covered after a waiting period of 24 months.", got)
}

func TestGenerate_KeepsContextOrder(t *testing.T) {
	g := New(3)

	got, err := g.Generate(context.Background(), prompt.Build("room rent and ambulance limits", passages))

	require.NoError(t, err)
	assert.Equal(t, "Ambulance charges are reimbursed up to 2000 per hospitalisation. Room rent is capped at 1% of the sum insured", got)
}

func TestGenerate_NoMatchingTerms(t *testing.T) {
	got, err := New(2).Generate(context.Background(), prompt.Build("dental implants?", passages))

	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestGenerate_EmptyContext(t *testing.T) {
	got, err := New(2).Generate(context.Background(), prompt.Build("anything?", nil))

	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestGenerate_PlainTextIsSummarised(t *testing.T) {
	text := "Claims must be filed within 30 days. Claims filed late are rejected. The sky is blue."

	got, err := New(2).Generate(context.Background(), text)

	require.NoError(t, err)
	assert.Equal(t, "Claims must be filed within 30 days. Claims filed late are rejected.", got)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(1).Generate(ctx, "x")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one!\n\na.\nTrailing clause without stop\n---\n")
	assert.Equal(t, []string{"First one.", "Second one!", "a.", "Trailing clause without stop"}, got)
}
