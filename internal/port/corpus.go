package port

import (
	"context"

	"hybridrag/internal/domain"
)

// CorpusStore serves immutable corpus snapshots and similarity queries over them.
type CorpusStore interface {
	// Snapshot returns the current corpus. The returned snapshot must not be mutated.
	Snapshot(ctx context.Context) (domain.Snapshot, error)

	// SimilarityQuery returns up to n documents nearest to the query embedding,
	// ordered by ascending distance.
	SimilarityQuery(ctx context.Context, query []float32, n int) ([]domain.Neighbor, error)
}

// CorpusPublisher replaces the whole corpus atomically. Searches running
// concurrently keep the snapshot they already hold.
type CorpusPublisher interface {
	Publish(ctx context.Context, docs []domain.Document) (string, error)
}

// CorpusRepository is a store that can both serve and publish snapshots.
type CorpusRepository interface {
	CorpusStore
	CorpusPublisher
	Close() error
}
