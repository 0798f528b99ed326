package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/config"
	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

func newTestBoltStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	s, err := NewBoltStore(path, vector.L2)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleDocs() []domain.Document {
	return []domain.Document{
		{ID: "d1", Text: "오민식 정비사 배치", Embedding: []float32{0, 0}},
		{ID: "d2", Text: "정비사 교대", Embedding: []float32{3, 4}},
		{ID: "d3", Text: "배치 일정", Embedding: []float32{0, 1}},
	}
}

func TestBoltStore_EmptySnapshot(t *testing.T) {
	s, _ := newTestBoltStore(t)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, "gen-0", snap.ID)
}

func TestBoltStore_PublishAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBoltStore(t)

	id, err := s.Publish(ctx, sampleDocs())
	require.NoError(t, err)
	assert.Equal(t, "gen-1", id)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{snap.Documents[0].ID, snap.Documents[1].ID, snap.Documents[2].ID})
	assert.Equal(t, "정비사 교대", snap.Documents[1].Text)
	assert.Equal(t, []float32{3, 4}, snap.Documents[1].Embedding)
}

func TestBoltStore_RepublishReplacesCorpus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBoltStore(t)

	_, err := s.Publish(ctx, sampleDocs())
	require.NoError(t, err)
	first, _ := s.Snapshot(ctx)

	id, err := s.Publish(ctx, []domain.Document{{ID: "only", Text: "one", Embedding: []float32{1, 1}}})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, id)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "only", snap.Documents[0].ID)

	// held snapshot unaffected
	assert.Equal(t, 3, first.Len())
}

func TestBoltStore_PublishRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBoltStore(t)

	_, err := s.Publish(ctx, []domain.Document{
		{ID: "a", Embedding: []float32{1}},
		{ID: "b", Embedding: []float32{1, 2}},
	})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-0", snap.ID)
}

func TestBoltStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corpus.db")

	s, err := NewBoltStore(path, vector.L2)
	require.NoError(t, err)
	id, err := s.Publish(ctx, sampleDocs())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(path, vector.L2)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, 3, snap.Len())
}

func TestBoltStore_SimilarityQuery(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBoltStore(t)
	_, err := s.Publish(ctx, sampleDocs())
	require.NoError(t, err)

	got, err := s.SimilarityQuery(ctx, []float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d3", got[1].ID)
	assert.Equal(t, "d2", got[2].ID)
	assert.InDelta(t, 5, got[2].Distance, 1e-9)
}

func TestBoltStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBoltStore(t)
	id, err := s.Publish(ctx, sampleDocs())
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.NotEqual(t, id, snap.ID)
}

func TestBoltStore_Migration(t *testing.T) {
	s, _ := newTestBoltStore(t)
	cfg := config.DefaultConfig()

	result, err := s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, result.NeedsMigration)
	assert.False(t, result.NeedsRebuild)

	require.NoError(t, s.Migrate(cfg))

	result, err = s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, result.NeedsMigration)
	assert.False(t, result.NeedsRebuild)

	changed := config.DefaultConfig()
	changed.Embedding.Model = "text-embedding-3-small"
	rebuild, reason, err := s.NeedsRebuild(changed)
	require.NoError(t, err)
	assert.True(t, rebuild)
	assert.Equal(t, "embedding configuration changed", reason)
}

func TestBoltStore_NewerSchema(t *testing.T) {
	s, _ := newTestBoltStore(t)
	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1}))

	result, err := s.CheckMigration(config.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, result.NeedsRebuild)
}

func TestComputeConfigHash(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	assert.Equal(t, ComputeConfigHash(a), ComputeConfigHash(b))

	// retrieval knobs do not invalidate stored embeddings
	b.Retrieve.Alpha = 0.2
	assert.Equal(t, ComputeConfigHash(a), ComputeConfigHash(b))

	b.Store.Metric = "l2"
	assert.NotEqual(t, ComputeConfigHash(a), ComputeConfigHash(b))
}
