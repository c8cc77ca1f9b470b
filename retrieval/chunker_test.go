package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextNeverDropsText(t *testing.T) {
	text := "Patient has fever. Patient takes ibuprofen. Blood pressure is normal. Follow up in two weeks."

	chunks := ChunkText(text, 6)
	require.NotEmpty(t, chunks)

	// Re-joining the chunks must reproduce the original sentence sequence.
	joined := strings.Join(chunks, " ")
	for _, sentence := range strings.Split(text, ". ") {
		assert.Contains(t, joined, strings.TrimSuffix(sentence, "."))
	}
}

func TestChunkTextRespectsCeiling(t *testing.T) {
	text := "one two three. four five six. seven eight nine. ten eleven twelve."

	for _, chunk := range ChunkText(text, 6) {
		assert.LessOrEqual(t, len(strings.Fields(chunk)), 6, "chunk %q over ceiling", chunk)
	}
}

func TestChunkTextKeepsOversizedSentenceWhole(t *testing.T) {
	long := "alpha beta gamma delta epsilon zeta eta theta"
	text := "short one. " + long + ". short two."

	chunks := ChunkText(text, 4)
	var found bool
	for _, chunk := range chunks {
		if strings.Contains(chunk, long) {
			found = true
			assert.Greater(t, len(strings.Fields(chunk)), 4)
		}
	}
	assert.True(t, found, "oversized sentence must appear unsplit")
}

func TestChunkTextFlattensNewlines(t *testing.T) {
	chunks := ChunkText("line one.\nline two. line three.", 100)
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0], "\n")
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("", 10))
	assert.Nil(t, ChunkText("   \n  ", 10))
}
