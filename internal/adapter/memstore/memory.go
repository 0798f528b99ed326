// Package memstore keeps the corpus in process memory.
package memstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

// MemoryStore holds one immutable snapshot at a time. Publish swaps in a new
// snapshot; readers that already hold the old one are unaffected.
type MemoryStore struct {
	metric  vector.Metric
	current atomic.Pointer[domain.Snapshot]
}

func NewMemoryStore(metric vector.Metric) *MemoryStore {
	s := &MemoryStore{metric: metric}
	s.current.Store(&domain.Snapshot{ID: uuid.NewString()})
	return s
}

func (s *MemoryStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return *s.current.Load(), nil
}

func (s *MemoryStore) SimilarityQuery(ctx context.Context, query []float32, n int) ([]domain.Neighbor, error) {
	snap := s.current.Load()
	neighbors, err := vector.Nearest(s.metric, query, snap.Documents, n)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	return neighbors, nil
}

// Publish validates docs and makes them the current snapshot.
func (s *MemoryStore) Publish(ctx context.Context, docs []domain.Document) (string, error) {
	if err := domain.ValidateDocuments(docs); err != nil {
		return "", err
	}

	copied := make([]domain.Document, len(docs))
	for i, doc := range docs {
		emb := make([]float32, len(doc.Embedding))
		copy(emb, doc.Embedding)
		copied[i] = domain.Document{ID: doc.ID, Text: doc.Text, Embedding: emb}
	}

	snap := &domain.Snapshot{ID: uuid.NewString(), Documents: copied}
	s.current.Store(snap)
	return snap.ID, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
