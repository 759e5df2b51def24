package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDimension = 32

// MockClient is a deterministic, offline domain.Embedder used by tests and
// the cmd/cogmem demo. It hashes each whitespace-separated word into one
// bucket of a fixed-dimension vector so that texts sharing words produce
// similar vectors
// without calling out to a real model.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (MockClient) Dimension() int { return mockDimension }

func (MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, mockDimension)
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		_, _ = h.Write(word)
		vec[h.Sum32()%mockDimension] += 1
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' {
			flush()
			continue
		}
		word = append(word, c)
	}
	flush()

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}
