package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"hybridrag/internal/adapter/retriever"
)

// DefaultIndexCacheSize is the number of snapshots whose BM25 index is kept.
const DefaultIndexCacheSize = 8

// IndexCache keeps BM25 indexes keyed by snapshot id. A snapshot id is only
// ever mapped to the index built from that snapshot, so a changed corpus
// (which carries a new id) never sees a stale index.
type IndexCache struct {
	entries *lru.Cache[string, *retriever.BM25Index]
	group   singleflight.Group
	total   *prometheus.CounterVec
}

// NewIndexCache creates a cache holding up to size indexes. total is an
// optional counter vec with label "result" ("hit"/"miss").
func NewIndexCache(size int, total *prometheus.CounterVec) (*IndexCache, error) {
	if size <= 0 {
		size = DefaultIndexCacheSize
	}
	entries, err := lru.New[string, *retriever.BM25Index](size)
	if err != nil {
		return nil, fmt.Errorf("create index cache: %w", err)
	}
	return &IndexCache{entries: entries, total: total}, nil
}

// GetOrBuild returns the cached index for snapshotID or builds it. Concurrent
// callers for the same snapshot share one build. An empty snapshotID is never cached.
func (c *IndexCache) GetOrBuild(snapshotID string, build func() (*retriever.BM25Index, error)) (*retriever.BM25Index, bool, error) {
	if snapshotID == "" {
		c.inc("miss")
		idx, err := build()
		return idx, false, err
	}

	if idx, ok := c.entries.Get(snapshotID); ok {
		c.inc("hit")
		return idx, true, nil
	}

	c.inc("miss")
	v, err, _ := c.group.Do(snapshotID, func() (any, error) {
		if idx, ok := c.entries.Get(snapshotID); ok {
			return idx, nil
		}
		idx, err := build()
		if err != nil {
			return nil, err
		}
		c.entries.Add(snapshotID, idx)
		return idx, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*retriever.BM25Index), false, nil
}

// Size returns the number of cached indexes.
func (c *IndexCache) Size() int {
	return c.entries.Len()
}

func (c *IndexCache) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
