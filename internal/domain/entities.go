package domain

import "fmt"

// Document is one pre-chunked passage with its precomputed embedding.
type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// Snapshot is an immutable, ordered view of the corpus for one search.
// ID changes whenever the corpus content changes.
type Snapshot struct {
	ID        string
	Documents []Document
}

// Len returns the number of documents in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Documents)
}

// Dimension returns the shared embedding dimension, or 0 for an empty snapshot.
func (s Snapshot) Dimension() int {
	if len(s.Documents) == 0 {
		return 0
	}
	return len(s.Documents[0].Embedding)
}

// Validate checks that ids are unique and all embeddings share one dimension.
func (s Snapshot) Validate() error {
	return ValidateDocuments(s.Documents)
}

// ValidateDocuments checks a document batch before it is published as a snapshot.
func ValidateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim := len(docs[0].Embedding)
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d: empty id", i)
		}
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
		}
		seen[doc.ID] = struct{}{}
		if len(doc.Embedding) != dim {
			return fmt.Errorf("%w: document %s has %d, expected %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), dim)
		}
	}
	return nil
}

// Neighbor is one entry of a similarity query: a document id and its distance to the query.
type Neighbor struct {
	ID       string
	Distance float64
}

// EmbedMode tells the embedding provider what the text is used for.
type EmbedMode string

const (
	EmbedQuery    EmbedMode = "query"
	EmbedDocument EmbedMode = "document"
)

// ScoredDocument is a ranked document with its score breakdown.
type ScoredDocument struct {
	Document Document
	Score    float64
	Sparse   float64
	Dense    float64
	Boosted  bool
}

// Outcome classifies a successful search.
type Outcome string

const (
	// OutcomeRanked means both signals were fused.
	OutcomeRanked Outcome = "ranked"
	// OutcomeEmptyCorpus means there was nothing to rank.
	OutcomeEmptyCorpus Outcome = "empty_corpus"
	// OutcomeSparseOnly means the dense signal was unavailable and degrade mode ranked on BM25 alone.
	OutcomeSparseOnly Outcome = "sparse_only"
)

// Result is the output of one search.
type Result struct {
	Outcome    Outcome
	SnapshotID string
	Documents  []ScoredDocument
}

// Texts returns the ranked document texts in order.
func (r Result) Texts() []string {
	texts := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		texts[i] = d.Document.Text
	}
	return texts
}

// IDs returns the ranked document ids in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		ids[i] = d.Document.ID
	}
	return ids
}
