package retrieval

import (
	"math"
	"sort"
)

// Scored is a passage with its similarity to the question. Index is the
// passage's position in the original chunk sequence.
type Scored struct {
	Index   int
	Passage string
	Score   float64
}

// Rank orders passages by cosine similarity to the query vector,
// descending. Exact ties keep the original passage order (earlier passage
// wins), so the result depends only on scores, not on input permutation.
func Rank(queryVec []float32, passages []string, vecs [][]float32) []Scored {
	scored := make([]Scored, 0, len(passages))
	for i, p := range passages {
		var score float64
		if i < len(vecs) {
			score = Cosine(queryVec, vecs[i])
		}
		scored = append(scored, Scored{Index: i, Passage: p, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})
	return scored
}

// TopContext concatenates the best topK passages into a QA context string.
func TopContext(ranked []Scored, topK int) string {
	if topK > len(ranked) {
		topK = len(ranked)
	}
	var out string
	for i := 0; i < topK; i++ {
		if i > 0 {
			out += " "
		}
		out += ranked[i].Passage
	}
	return out
}

// Cosine computes cosine similarity between two vectors. Mismatched
// lengths are compared over the shorter prefix; zero vectors score zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
