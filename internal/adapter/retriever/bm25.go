package retriever

import (
	"fmt"
	"math"
)

// IDF variants.
const (
	// IDFOkapi is ln((N-n+0.5)/(n+0.5)); negative values are floored to
	// epsilon times the average idf of the corpus vocabulary.
	IDFOkapi = "okapi"
	// IDFLucene is ln((N-n+0.5)/(n+0.5)+1), never negative.
	IDFLucene = "lucene"
)

// BM25Params configures the sparse scorer.
type BM25Params struct {
	K1      float64
	B       float64
	IDF     string
	Epsilon float64
}

// DefaultBM25Params returns the Okapi defaults (k1=1.5, b=0.75, epsilon=0.25).
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75, IDF: IDFOkapi, Epsilon: 0.25}
}

// BM25Index holds term statistics for one tokenized corpus.
// It is read-only after BuildBM25 and safe for concurrent use.
type BM25Index struct {
	params    BM25Params
	docTF     []map[string]int
	docLen    []int
	avgDocLen float64
	idf       map[string]float64
}

// BuildBM25 builds an index over the tokenized corpus. Scores returned by
// Score follow the order of tokenized.
func BuildBM25(tokenized [][]string, params BM25Params) (*BM25Index, error) {
	switch params.IDF {
	case "":
		params.IDF = IDFOkapi
	case IDFOkapi, IDFLucene:
	default:
		return nil, fmt.Errorf("unknown idf variant %q", params.IDF)
	}

	idx := &BM25Index{
		params: params,
		docTF:  make([]map[string]int, len(tokenized)),
		docLen: make([]int, len(tokenized)),
		idf:    make(map[string]float64),
	}

	df := make(map[string]int)
	totalLen := 0
	for i, tokens := range tokenized {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		idx.docTF[i] = tf
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)
	}

	if len(tokenized) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(tokenized))
	}

	idx.computeIDF(df)
	return idx, nil
}

func (idx *BM25Index) computeIDF(df map[string]int) {
	N := float64(len(idx.docTF))

	var idfSum float64
	var negative []string
	for term, freq := range df {
		n := float64(freq)
		var idf float64
		if idx.params.IDF == IDFLucene {
			idf = math.Log((N-n+0.5)/(n+0.5) + 1)
		} else {
			idf = math.Log((N - n + 0.5) / (n + 0.5))
		}
		idx.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}

	if idx.params.IDF != IDFOkapi || len(df) == 0 {
		return
	}
	floor := idx.params.Epsilon * idfSum / float64(len(df))
	for _, term := range negative {
		idx.idf[term] = floor
	}
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	return len(idx.docTF)
}

// IDF returns the inverse document frequency of term, 0 if the term is not indexed.
func (idx *BM25Index) IDF(term string) float64 {
	return idx.idf[term]
}

// Score scores the query against every document. The result is aligned to the
// corpus order given to BuildBM25. Query terms absent from the corpus add nothing.
func (idx *BM25Index) Score(queryTokens []string) []float64 {
	scores := make([]float64, len(idx.docTF))
	if len(scores) == 0 || len(queryTokens) == 0 {
		return scores
	}

	k1, b := idx.params.K1, idx.params.B
	avgDl := idx.avgDocLen
	if avgDl == 0 {
		avgDl = 1
	}

	for _, term := range queryTokens {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i, tf := range idx.docTF {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			dl := float64(idx.docLen[i])
			scores[i] += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*dl/avgDl))
		}
	}

	return scores
}
