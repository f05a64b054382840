package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock is a deterministic embedder for tests: the same text always
// produces the same vector, with no model or network dependency,
// grounded on the corpus's mock-embedder test doubles.
type Mock struct {
	dim   int
	ready bool
}

// NewMock creates a deterministic mock embedder of the given dimension.
func NewMock(dim int) *Mock {
	return &Mock{dim: dim, ready: true}
}

// SetReady toggles readiness, used to exercise the EmbedderUnavailable /
// degraded lexical-only scenario in tests.
func (m *Mock) SetReady(ready bool) { m.ready = ready }

func (m *Mock) Dim() int { return m.dim }

func (m *Mock) IsReady() bool { return m.ready }

func (m *Mock) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, m.dim)
	}
	return out, nil
}

// deterministicVector derives a reproducible unit-normalized vector from
// text via a seeded hash-based PRNG, so repeated runs over the same text
// corpus produce byte-identical embeddings (spec.md §4.4's determinism
// requirement).
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	v := make([]float32, dim)
	var sumSq float64
	for i := 0; i < dim; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		// map to [-1, 1]
		x := float64(int64(state)) / float64(math.MaxInt64)
		v[i] = float32(x)
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
