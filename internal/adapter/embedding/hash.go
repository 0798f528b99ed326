package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"hybridrag/internal/domain"
)

// HashEmbedder is a deterministic offline embedder. Each lowercase word is
// hashed into one of dimension buckets and the vector is L2-normalized, so
// texts sharing words are close under cosine distance. The mode is ignored.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string, mode domain.EmbedMode) ([]float32, error) {
	vec := make([]float32, e.dimension)
	if e.dimension == 0 {
		return vec, nil
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
