package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersByScoreDescending(t *testing.T) {
	query := []float32{1, 0}
	passages := []string{"orthogonal", "aligned", "diagonal"}
	vecs := [][]float32{{0, 1}, {1, 0}, {1, 1}}

	ranked := Rank(query, passages, vecs)
	require.Len(t, ranked, 3)
	assert.Equal(t, "aligned", ranked[0].Passage)
	assert.Equal(t, "diagonal", ranked[1].Passage)
	assert.Equal(t, "orthogonal", ranked[2].Passage)
}

func TestRankStableUnderInputReordering(t *testing.T) {
	query := []float32{1, 0}
	vecs := map[string][]float32{
		"a": {1, 0},
		"b": {0.5, 0.5},
		"c": {0, 1},
	}

	order1 := []string{"a", "b", "c"}
	order2 := []string{"c", "a", "b"}

	rank := func(order []string) []string {
		vs := make([][]float32, len(order))
		for i, p := range order {
			vs[i] = vecs[p]
		}
		ranked := Rank(query, order, vs)
		out := make([]string, len(ranked))
		for i, r := range ranked {
			out[i] = r.Passage
		}
		return out
	}

	assert.Equal(t, rank(order1), rank(order2))
}

func TestRankTiesPreserveOriginalOrder(t *testing.T) {
	query := []float32{1, 0}
	passages := []string{"first", "second", "third"}
	same := []float32{1, 0}
	vecs := [][]float32{same, same, same}

	ranked := Rank(query, passages, vecs)
	assert.Equal(t, []int{0, 1, 2}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index})
}

func TestTopContext(t *testing.T) {
	ranked := []Scored{
		{Index: 1, Passage: "best.", Score: 0.9},
		{Index: 0, Passage: "second.", Score: 0.5},
		{Index: 2, Passage: "worst.", Score: 0.1},
	}
	assert.Equal(t, "best. second.", TopContext(ranked, 2))
	assert.Equal(t, "best. second. worst.", TopContext(ranked, 10))
}

func TestCosineZeroVector(t *testing.T) {
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}
