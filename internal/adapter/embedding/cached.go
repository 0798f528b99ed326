package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"hybridrag/internal/domain"
	"hybridrag/internal/metrics"
	"hybridrag/internal/port"
)

// CachedEmbedder keeps recent embeddings in an LRU keyed by mode and text.
// Failures are not cached.
type CachedEmbedder struct {
	next  port.Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(next port.Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, mode domain.EmbedMode) ([]float32, error) {
	key := string(mode) + "\x00" + text
	if vec, ok := e.cache.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := e.next.Embed(ctx, text, mode)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, vec)
	return vec, nil
}

func (e *CachedEmbedder) ModelName() string {
	return e.next.ModelName()
}

// Len returns the number of cached embeddings.
func (e *CachedEmbedder) Len() int {
	return e.cache.Len()
}
