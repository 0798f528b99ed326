package memstore

import (
	"context"
	"errors"
	"testing"

	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
)

func TestMemoryStore_EmptySnapshot(t *testing.T) {
	s := NewMemoryStore(vector.Cosine)

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d documents", snap.Len())
	}
	if snap.ID == "" {
		t.Error("expected a snapshot id")
	}
}

func TestMemoryStore_PublishChangesID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(vector.L2)

	before, _ := s.Snapshot(ctx)

	docs := []domain.Document{
		{ID: "a", Text: "alpha", Embedding: []float32{0, 0}},
		{ID: "b", Text: "beta", Embedding: []float32{3, 4}},
	}
	id, err := s.Publish(ctx, docs)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id == before.ID {
		t.Error("expected a new snapshot id after publish")
	}

	snap, _ := s.Snapshot(ctx)
	if snap.ID != id || snap.Len() != 2 {
		t.Fatalf("unexpected snapshot %s with %d docs", snap.ID, snap.Len())
	}
	if snap.Documents[0].ID != "a" || snap.Documents[1].ID != "b" {
		t.Error("expected publish order to be kept")
	}

	again, _ := s.Publish(ctx, docs)
	if again == id {
		t.Error("expected every publish to produce a new id")
	}
}

func TestMemoryStore_PublishCopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(vector.L2)

	docs := []domain.Document{{ID: "a", Text: "alpha", Embedding: []float32{1, 2}}}
	if _, err := s.Publish(ctx, docs); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	docs[0].Embedding[0] = 99
	docs[0].Text = "changed"

	snap, _ := s.Snapshot(ctx)
	if snap.Documents[0].Embedding[0] != 1 || snap.Documents[0].Text != "alpha" {
		t.Error("expected snapshot to be isolated from caller mutation")
	}
}

func TestMemoryStore_HeldSnapshotSurvivesPublish(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(vector.L2)

	_, _ = s.Publish(ctx, []domain.Document{{ID: "a", Text: "old", Embedding: []float32{1}}})
	held, _ := s.Snapshot(ctx)

	_, _ = s.Publish(ctx, []domain.Document{{ID: "b", Text: "new", Embedding: []float32{1}}})

	if held.Documents[0].ID != "a" {
		t.Error("expected held snapshot to be unchanged")
	}
}

func TestMemoryStore_PublishRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(vector.Cosine)

	_, err := s.Publish(ctx, []domain.Document{
		{ID: "a", Embedding: []float32{1, 2}},
		{ID: "a", Embedding: []float32{1, 2}},
	})
	if !errors.Is(err, domain.ErrDuplicateDocument) {
		t.Errorf("expected ErrDuplicateDocument, got %v", err)
	}

	_, err = s.Publish(ctx, []domain.Document{
		{ID: "a", Embedding: []float32{1, 2}},
		{ID: "b", Embedding: []float32{1}},
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	snap, _ := s.Snapshot(ctx)
	if snap.Len() != 0 {
		t.Error("expected failed publish to leave the store unchanged")
	}
}

func TestMemoryStore_SimilarityQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(vector.L2)

	_, _ = s.Publish(ctx, []domain.Document{
		{ID: "far", Embedding: []float32{6, 8}},
		{ID: "near", Embedding: []float32{0, 1}},
		{ID: "mid", Embedding: []float32{3, 4}},
	})

	got, err := s.SimilarityQuery(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("SimilarityQuery failed: %v", err)
	}
	want := []string{"near", "mid", "far"}
	for i, n := range got {
		if n.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], n.ID)
		}
	}
	if got[2].Distance != 10 {
		t.Errorf("expected distance 10, got %f", got[2].Distance)
	}

	_, err = s.SimilarityQuery(ctx, []float32{0, 0, 0}, 3)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
