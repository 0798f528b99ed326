package retriever

import (
	"errors"
	"math"
	"testing"

	"hybridrag/internal/domain"
)

func TestDenseScores(t *testing.T) {
	scores, err := DenseScores([]domain.Neighbor{
		{ID: "near", Distance: 0},
		{ID: "mid", Distance: 0.5},
		{ID: "far", Distance: 1},
	}, 1e-4)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(scores["near"]-1) > 1e-9 {
		t.Errorf("expected closest document to score 1, got %f", scores["near"])
	}
	if want := 1 - 0.5/1.0001; math.Abs(scores["mid"]-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, scores["mid"])
	}
	if scores["far"] <= 0 || scores["far"] > 1e-3 {
		t.Errorf("expected farthest document to score near 0, got %f", scores["far"])
	}
}

func TestDenseScores_AllZeroDistances(t *testing.T) {
	scores, err := DenseScores([]domain.Neighbor{
		{ID: "a", Distance: 0},
		{ID: "b", Distance: 0},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	for id, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("score for %s is not finite: %f", id, s)
		}
		if s != 1 {
			t.Errorf("expected score 1 for %s, got %f", id, s)
		}
	}
}

func TestDenseScores_EqualDistances(t *testing.T) {
	scores, err := DenseScores([]domain.Neighbor{
		{ID: "a", Distance: 0.3},
		{ID: "b", Distance: 0.3},
	}, DefaultDenseEpsilon)
	if err != nil {
		t.Fatal(err)
	}
	if scores["a"] != scores["b"] {
		t.Errorf("expected equal scores, got %v", scores)
	}
}

func TestDenseScores_Empty(t *testing.T) {
	scores, err := DenseScores(nil, DefaultDenseEpsilon)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %v", scores)
	}
}

func TestDenseScores_DuplicateID(t *testing.T) {
	_, err := DenseScores([]domain.Neighbor{
		{ID: "a", Distance: 0.1},
		{ID: "a", Distance: 0.2},
	}, DefaultDenseEpsilon)
	if !errors.Is(err, domain.ErrAlignmentViolation) {
		t.Errorf("expected alignment violation, got %v", err)
	}
}
