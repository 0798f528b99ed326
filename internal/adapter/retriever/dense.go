package retriever

import (
	"fmt"

	"hybridrag/internal/domain"
)

// DefaultDenseEpsilon keeps the dense score finite when every distance is zero.
const DefaultDenseEpsilon = 1e-4

// DenseScores converts distances into scores where higher means closer:
// score = 1 - d / (max_d + epsilon). The closest document scores near 1 and the
// farthest near 0. Scores are relative to this query only.
func DenseScores(neighbors []domain.Neighbor, epsilon float64) (map[string]float64, error) {
	if epsilon <= 0 {
		epsilon = DefaultDenseEpsilon
	}

	scores := make(map[string]float64, len(neighbors))
	if len(neighbors) == 0 {
		return scores, nil
	}

	maxDist := neighbors[0].Distance
	for _, n := range neighbors[1:] {
		if n.Distance > maxDist {
			maxDist = n.Distance
		}
	}

	for _, n := range neighbors {
		if _, dup := scores[n.ID]; dup {
			return nil, fmt.Errorf("%w: document %s returned twice by similarity query",
				domain.ErrAlignmentViolation, n.ID)
		}
		scores[n.ID] = 1 - n.Distance/(maxDist+epsilon)
	}
	return scores, nil
}
