package retriever

import (
	"fmt"
	"sort"
	"strings"

	"hybridrag/internal/domain"
)

// FusionParams configures score fusion.
type FusionParams struct {
	// Alpha weighs the sparse score; the dense score gets 1 - Alpha.
	Alpha float64
	// Boost is added when the first query word occurs in the document text.
	Boost float64
	// SparseOnly ranks on the normalized sparse score alone and ignores dense scores.
	SparseOnly bool
}

// DefaultFusionParams returns alpha 0.6 and boost 0.1.
func DefaultFusionParams() FusionParams {
	return FusionParams{Alpha: 0.6, Boost: 0.1}
}

// KeyByID keys a score vector by the id of the document at the same position.
func KeyByID(docs []domain.Document, scores []float64) (map[string]float64, error) {
	if len(docs) != len(scores) {
		return nil, fmt.Errorf("%w: %d documents, %d scores",
			domain.ErrAlignmentViolation, len(docs), len(scores))
	}
	keyed := make(map[string]float64, len(docs))
	for i, doc := range docs {
		keyed[doc.ID] = scores[i]
	}
	return keyed, nil
}

// NormalizeByMax divides every score by the maximum. When the maximum is not
// positive the scores are returned unchanged.
func NormalizeByMax(raw map[string]float64) map[string]float64 {
	var maxScore float64
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}

	norm := make(map[string]float64, len(raw))
	for id, s := range raw {
		if maxScore > 0 {
			norm[id] = s / maxScore
		} else {
			norm[id] = s
		}
	}
	return norm
}

// BoostToken returns the first whitespace-separated word of the raw query.
func BoostToken(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Fuse merges raw sparse scores and dense scores by document id, applies the
// exact-match boost, sorts by fused score and returns at most k documents.
// Equal scores keep snapshot order. k <= 0 returns every document.
//
// Both score maps must hold exactly the snapshot's ids; anything else is
// reported as domain.ErrAlignmentViolation.
func Fuse(query string, docs []domain.Document, sparseRaw, dense map[string]float64, params FusionParams, k int) ([]domain.ScoredDocument, error) {
	if err := checkAligned("sparse", docs, sparseRaw); err != nil {
		return nil, err
	}
	if !params.SparseOnly {
		if err := checkAligned("dense", docs, dense); err != nil {
			return nil, err
		}
	}

	sparse := NormalizeByMax(sparseRaw)
	token := BoostToken(query)

	results := make([]domain.ScoredDocument, len(docs))
	for i, doc := range docs {
		sd := domain.ScoredDocument{Document: doc, Sparse: sparse[doc.ID]}
		if params.SparseOnly {
			sd.Score = sd.Sparse
		} else {
			sd.Dense = dense[doc.ID]
			sd.Score = params.Alpha*sd.Sparse + (1-params.Alpha)*sd.Dense
		}
		if token != "" && strings.Contains(doc.Text, token) {
			sd.Score += params.Boost
			sd.Boosted = true
		}
		results[i] = sd
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func checkAligned(name string, docs []domain.Document, scores map[string]float64) error {
	if len(scores) != len(docs) {
		return fmt.Errorf("%w: %d %s scores for %d documents",
			domain.ErrAlignmentViolation, len(scores), name, len(docs))
	}
	for _, doc := range docs {
		if _, ok := scores[doc.ID]; !ok {
			return fmt.Errorf("%w: no %s score for document %s",
				domain.ErrAlignmentViolation, name, doc.ID)
		}
	}
	return nil
}
