package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/internal/adapter/embedding"
	"hybridrag/internal/adapter/fs"
	"hybridrag/internal/adapter/memstore"
	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

func writeCorpus(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func newImport(store *memstore.MemoryStore, embedMissing bool) *ImportUseCase {
	return NewImportUseCase(
		fs.NewWalker(nil, nil),
		fs.NewJSONLReader(),
		store,
		embedding.NewHashEmbedder(2),
		embedMissing,
		nil,
	)
}

func TestImport_PublishesInPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "b.jsonl", `{"id":"d3","text":"통계 실습 오민식","embedding":[1,1]}`+"\n")
	writeCorpus(t, dir, "a.jsonl", `{"id":"d1","text":"통계학 개론 오민식 교수","embedding":[1,0]}`+"\n"+
		`{"id":"d2","text":"영어 회화 김영희 교수","embedding":[0,1]}`+"\n")

	store := memstore.NewMemoryStore(vector.Cosine)
	var calls []int
	result, err := newImport(store, false).Import(context.Background(), dir, func(done, total int) {
		calls = append(calls, done)
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, []int{1, 2}, calls)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.SnapshotID, snap.ID)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{snap.Documents[0].ID, snap.Documents[1].ID, snap.Documents[2].ID})
}

func TestImport_MissingEmbedding(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "a.jsonl", `{"id":"d1","text":"crew lead"}`+"\n")
	store := memstore.NewMemoryStore(vector.Cosine)

	_, err := newImport(store, false).Import(context.Background(), dir, nil)
	require.Error(t, err)

	result, err := newImport(store, true).Import(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embedded)

	snap, _ := store.Snapshot(context.Background())
	assert.Len(t, snap.Documents[0].Embedding, 2)
}

func TestImport_DuplicateAcrossFilesPublishesNothing(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "a.jsonl", `{"id":"d1","text":"x","embedding":[1]}`+"\n")
	writeCorpus(t, dir, "b.jsonl", `{"id":"d1","text":"y","embedding":[1]}`+"\n")
	store := memstore.NewMemoryStore(vector.Cosine)
	before, _ := store.Snapshot(context.Background())

	_, err := newImport(store, false).Import(context.Background(), dir, nil)
	assert.True(t, errors.Is(err, domain.ErrDuplicateDocument))

	after, _ := store.Snapshot(context.Background())
	assert.Equal(t, before.ID, after.ID)
}

func TestImport_EmptyDirectoryPublishesEmptyCorpus(t *testing.T) {
	store := memstore.NewMemoryStore(vector.Cosine)
	result, err := newImport(store, false).Import(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Documents)

	snap, _ := store.Snapshot(context.Background())
	assert.Equal(t, result.SnapshotID, snap.ID)
	assert.Equal(t, 0, snap.Len())
}
