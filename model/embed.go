package model

import (
	"context"
)

// Embedder converts text into a fixed-dimension vector. Implementations
// must be safe for concurrent use once constructed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedAll embeds every passage with the same embedder so the question and
// the passages share one vector space.
func EmbedAll(ctx context.Context, e Embedder, passages []string) ([][]float32, error) {
	vecs := make([][]float32, len(passages))
	for i, p := range passages {
		v, err := e.Embed(ctx, p)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
