package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"go.etcd.io/bbolt"

	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

var (
	bucketDocs = []byte("docs")
	bucketMeta = []byte("meta")
)

// BoltStore persists the corpus in a bbolt file. Documents are keyed by their
// position so a snapshot reads back in publish order. The snapshot id is the
// meta bucket sequence, bumped by every publish.
type BoltStore struct {
	db     *bbolt.DB
	metric vector.Metric

	mu     sync.RWMutex
	cached *domain.Snapshot
}

func NewBoltStore(path string, metric vector.Metric) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, metric: metric}, nil
}

type storedDoc struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

func snapshotID(seq uint64) string {
	return "gen-" + strconv.FormatUint(seq, 10)
}

func positionKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

// Snapshot returns the current corpus. Decoded snapshots are kept in memory
// until the sequence changes.
func (s *BoltStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var seq uint64
	if err := s.db.View(func(tx *bbolt.Tx) error {
		seq = tx.Bucket(bucketMeta).Sequence()
		return nil
	}); err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil && cached.ID == snapshotID(seq) {
		return *cached, nil
	}

	snap, err := s.load()
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.Lock()
	s.cached = &snap
	s.mu.Unlock()
	return snap, nil
}

// load reads sequence and documents in one read transaction.
func (s *BoltStore) load() (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		snap.ID = snapshotID(tx.Bucket(bucketMeta).Sequence())
		b := tx.Bucket(bucketDocs)
		snap.Documents = make([]domain.Document, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var d storedDoc
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decode document at %x: %w", k, err)
			}
			snap.Documents = append(snap.Documents, domain.Document{ID: d.ID, Text: d.Text, Embedding: d.Embedding})
			return nil
		})
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

// SimilarityQuery scans the current snapshot's embeddings.
func (s *BoltStore) SimilarityQuery(ctx context.Context, query []float32, n int) ([]domain.Neighbor, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	neighbors, err := vector.Nearest(s.metric, query, snap.Documents, n)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	return neighbors, nil
}

// Publish replaces every stored document in a single write transaction.
func (s *BoltStore) Publish(ctx context.Context, docs []domain.Document) (string, error) {
	if err := domain.ValidateDocuments(docs); err != nil {
		return "", err
	}

	var id string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocs); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketDocs)
		if err != nil {
			return err
		}

		for i, doc := range docs {
			data, err := json.Marshal(storedDoc{ID: doc.ID, Text: doc.Text, Embedding: doc.Embedding})
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(i), data); err != nil {
				return err
			}
		}

		seq, err := tx.Bucket(bucketMeta).NextSequence()
		if err != nil {
			return err
		}
		id = snapshotID(seq)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish corpus: %w", err)
	}
	return id, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
