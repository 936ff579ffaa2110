// Package embed provides vector embedders for the semantic stage.
package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder converts text to a vector embedding. Vectors are float32 to
// match the semantic stage's index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// HashEmbedder generates deterministic embeddings seeded by a hash of
// the text. It needs no model artifacts and is the default: identical
// text always maps to the identical unit vector, which is all the
// semantic stage requires for exact-content similarity lookups and
// tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. dims <= 0 selects 256.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Model() string   { return "hash" }
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed derives the vector from an FNV hash of the text via a linear
// congruential generator, then L2-normalizes it.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	hs := fnv.New64a()
	hs.Write([]byte(text))
	seed := hs.Sum64()

	vec := make([]float32, h.dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	normalize(vec)
	return vec, nil
}

// normalize performs in-place L2 normalization.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
