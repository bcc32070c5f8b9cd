package notes

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotes = `# Biology

**Photosynthesis**: the process plants use to turn light into sugar.
Mitochondria: the organelle that produces most of the cell's ATP.

## Osmosis
Water moving across a semi-permeable membrane
toward the higher solute concentration.

**ATP**: energy.
**Photosynthesis**: duplicate entry that should be ignored.
`

func TestExtract(t *testing.T) {
	cards := Extract(sampleNotes)
	require.Len(t, cards, 3)

	assert.Equal(t, "What is Photosynthesis?", cards[0].Question)
	assert.Equal(t, "the process plants use to turn light into sugar", cards[0].Answer)
	assert.Equal(t, "Photosynthesis", cards[0].Topic)

	assert.Equal(t, "What is Mitochondria?", cards[1].Question)
	assert.Equal(t, "What is Osmosis?", cards[2].Question)
	assert.Equal(t, "Water moving across a semi-permeable membrane toward the higher solute concentration.", cards[2].Answer)
}

func TestExtractNothing(t *testing.T) {
	assert.Empty(t, Extract("just some lowercase prose without any definitions"))
}

func TestBuildQuestions(t *testing.T) {
	questions := BuildQuestions(sampleNotes, 0, rand.New(rand.NewSource(7)))
	require.Len(t, questions, 3)

	for _, q := range questions {
		q.ID = "q"
		require.NoError(t, q.Validate())
		assert.Len(t, q.Options, 3)
		assert.Equal(t, "What best describes: "+q.Topic+"?", q.Prompt)
		assert.Contains(t, q.Explanation, q.Options[q.AnswerIndex])
	}

	assert.Len(t, BuildQuestions(sampleNotes, 2, rand.New(rand.NewSource(7))), 2)
}

func TestBuildQuestionsNeedsDistractors(t *testing.T) {
	single := "**Photosynthesis**: the process plants use to turn light into sugar.\n"
	assert.Empty(t, BuildQuestions(single, 5, rand.New(rand.NewSource(1))))
	assert.Empty(t, BuildQuestions("", 5, rand.New(rand.NewSource(1))))
}
