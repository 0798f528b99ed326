package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/config"
	"hybridrag/internal/adapter/store"
	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hybridrag.yaml")

	require.NoError(t, writeDefaultConfig(path, false))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	assert.Error(t, writeDefaultConfig(path, false))
	assert.NoError(t, writeDefaultConfig(path, true))
}

func TestClearIfRebuildNeeded(t *testing.T) {
	cfg := hashConfig()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "corpus.db"), vector.Cosine)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.Publish(ctx, []domain.Document{{ID: "D1", Text: "통계학 개론", Embedding: []float32{1, 0}}})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(cfg))

	// unchanged settings keep the corpus
	require.NoError(t, clearIfRebuildNeeded(st, cfg))
	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	changed := hashConfig()
	changed.Embedding.Dimension = 32
	require.NoError(t, clearIfRebuildNeeded(st, changed))
	snap, err = st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestWriteDefaultConfig_BadDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "hybridrag.yaml")
	err := writeDefaultConfig(path, false)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
