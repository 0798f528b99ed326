// Package vector computes embedding distances for stores that keep vectors in process.
package vector

import (
	"fmt"
	"math"
	"sort"

	"hybridrag/internal/domain"
)

// Metric names a distance function.
type Metric string

const (
	// Cosine is 1 - cosine similarity, in [0, 2].
	Cosine Metric = "cosine"
	// L2 is the Euclidean distance.
	L2 Metric = "l2"
)

// ParseMetric validates a metric name. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", Cosine:
		return Cosine, nil
	case L2:
		return L2, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Distance returns the distance between a and b under m.
func Distance(m Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	if m == L2 {
		return l2Distance(a, b), nil
	}
	return 1 - cosineSimilarity(a, b), nil
}

// cosineSimilarity returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Nearest computes the distance from query to every document and returns the n
// closest, ascending. Equal distances keep document order. n <= 0 or n larger
// than the corpus returns every document.
func Nearest(m Metric, query []float32, docs []domain.Document, n int) ([]domain.Neighbor, error) {
	neighbors := make([]domain.Neighbor, 0, len(docs))
	for _, doc := range docs {
		d, err := Distance(m, query, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		neighbors = append(neighbors, domain.Neighbor{ID: doc.ID, Distance: d})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if n > 0 && n < len(neighbors) {
		neighbors = neighbors[:n]
	}
	return neighbors, nil
}
