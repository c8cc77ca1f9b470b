package retrieval

import (
	"strings"
)

// DefaultChunkSize is the passage ceiling in whitespace-delimited words, a
// cheap approximation of token count.
const DefaultChunkSize = 512

// ChunkText splits extracted text into passages bounded by maxWords,
// accumulating whole sentences greedily. Sentences are never split: a
// single sentence longer than the ceiling is passed through as its own
// passage. Pure function, deterministic for a given input.
func ChunkText(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := strings.Split(strings.ReplaceAll(text, "\n", " "), ". ")

	var chunks []string
	var current []string
	currentSize := 0

	for _, sentence := range sentences {
		size := len(strings.Fields(sentence))
		if currentSize+size > maxWords && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ". ")+".")
			current = []string{sentence}
			currentSize = size
		} else {
			current = append(current, sentence)
			currentSize += size
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ". ")+".")
	}
	return chunks
}
