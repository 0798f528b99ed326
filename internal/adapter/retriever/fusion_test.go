package retriever

import (
	"errors"
	"reflect"
	"testing"

	"hybridrag/internal/domain"
)

func docs(texts ...string) []domain.Document {
	out := make([]domain.Document, len(texts))
	for i, text := range texts {
		out[i] = domain.Document{ID: string(rune('A' + i)), Text: text}
	}
	return out
}

func uniform(d []domain.Document, v float64) map[string]float64 {
	m := make(map[string]float64, len(d))
	for _, doc := range d {
		m[doc.ID] = v
	}
	return m
}

func ids(results []domain.ScoredDocument) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func TestNormalizeByMax(t *testing.T) {
	norm := NormalizeByMax(map[string]float64{"a": 2, "b": 1, "c": 0})
	want := map[string]float64{"a": 1, "b": 0.5, "c": 0}
	if !reflect.DeepEqual(norm, want) {
		t.Errorf("expected %v, got %v", want, norm)
	}
}

func TestNormalizeByMax_AllZero(t *testing.T) {
	norm := NormalizeByMax(map[string]float64{"a": 0, "b": 0})
	for id, s := range norm {
		if s != 0 {
			t.Errorf("expected zero for %s, got %f", id, s)
		}
	}
}

func TestBoostToken(t *testing.T) {
	tests := map[string]string{
		"오민식 통계학":   "오민식",
		"  lead  x": "lead",
		"":          "",
		"   ":       "",
	}
	for query, want := range tests {
		if got := BoostToken(query); got != want {
			t.Errorf("BoostToken(%q) = %q, want %q", query, got, want)
		}
	}
}

func TestFuse_WeightedSum(t *testing.T) {
	d := docs("x", "y")
	sparse := map[string]float64{"A": 4, "B": 2}
	dense := map[string]float64{"A": 0, "B": 1}

	results, err := Fuse("", d, sparse, dense, FusionParams{Alpha: 0.6, Boost: 0.1}, 0)
	if err != nil {
		t.Fatal(err)
	}

	// A: 0.6*1 + 0.4*0 = 0.6; B: 0.6*0.5 + 0.4*1 = 0.7
	if got := ids(results); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("expected [B A], got %v", got)
	}
	if diff := results[0].Score - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected fused score 0.7, got %f", results[0].Score)
	}
	if results[1].Sparse != 1 || results[1].Dense != 0 {
		t.Errorf("unexpected breakdown %+v", results[1])
	}
}

func TestFuse_MonotonicInBothInputs(t *testing.T) {
	d := docs("x", "y")
	params := FusionParams{Alpha: 0.6}
	levels := []float64{0, 0.25, 0.5, 1}

	for _, fixed := range levels {
		prev := -1.0
		for _, dense := range levels {
			results, err := Fuse("", d,
				map[string]float64{"A": 1, "B": fixed},
				map[string]float64{"A": 0, "B": dense}, params, 0)
			if err != nil {
				t.Fatal(err)
			}
			score := scoreOf(results, "B")
			if score < prev {
				t.Errorf("fused score decreased when dense grew: %f < %f", score, prev)
			}
			prev = score
		}

		prev = -1.0
		for _, sparse := range levels {
			results, err := Fuse("", d,
				map[string]float64{"A": 1, "B": sparse},
				map[string]float64{"A": 0, "B": fixed}, params, 0)
			if err != nil {
				t.Fatal(err)
			}
			score := scoreOf(results, "B")
			if score < prev {
				t.Errorf("fused score decreased when sparse grew: %f < %f", score, prev)
			}
			prev = score
		}
	}
}

func scoreOf(results []domain.ScoredDocument, id string) float64 {
	for _, r := range results {
		if r.Document.ID == id {
			return r.Score
		}
	}
	return -1
}

func TestFuse_ZeroSparseMax(t *testing.T) {
	d := docs("x", "y", "z")
	results, err := Fuse("", d, uniform(d, 0), map[string]float64{"A": 0.1, "B": 0.9, "C": 0.5},
		DefaultFusionParams(), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Sparse != 0 {
			t.Errorf("expected zero sparse score, got %f", r.Sparse)
		}
	}
	if got := ids(results); !reflect.DeepEqual(got, []string{"B", "C", "A"}) {
		t.Errorf("expected dense order [B C A], got %v", got)
	}
}

func TestFuse_BoostStrictlyIncreasesScore(t *testing.T) {
	d := []domain.Document{{ID: "A", Text: "통계학 개론 오민식 교수"}}
	sparse := map[string]float64{"A": 1}
	dense := map[string]float64{"A": 0.5}

	boosted, err := Fuse("오민식 통계학", d, sparse, dense, DefaultFusionParams(), 0)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := Fuse("김영희 통계학", d, sparse, dense, DefaultFusionParams(), 0)
	if err != nil {
		t.Fatal(err)
	}

	if !boosted[0].Boosted || plain[0].Boosted {
		t.Fatalf("unexpected boost flags: %v %v", boosted[0].Boosted, plain[0].Boosted)
	}
	if boosted[0].Score <= plain[0].Score {
		t.Errorf("expected boosted score %f to exceed %f", boosted[0].Score, plain[0].Score)
	}
}

func TestFuse_BoostCanExceedOne(t *testing.T) {
	d := []domain.Document{{ID: "A", Text: "lead"}}
	results, err := Fuse("lead", d, map[string]float64{"A": 1}, map[string]float64{"A": 1},
		DefaultFusionParams(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Score <= 1 {
		t.Errorf("expected score above 1, got %f", results[0].Score)
	}
}

func TestFuse_StableTies(t *testing.T) {
	d := docs("a", "b", "c", "d")
	for i := 0; i < 20; i++ {
		results, err := Fuse("", d, uniform(d, 1), uniform(d, 0.5), DefaultFusionParams(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := ids(results); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
			t.Fatalf("expected snapshot order for ties, got %v", got)
		}
	}
}

func TestFuse_TopK(t *testing.T) {
	d := docs("a", "b", "c")
	sparse := map[string]float64{"A": 1, "B": 3, "C": 2}

	results, err := Fuse("", d, sparse, uniform(d, 0), DefaultFusionParams(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(results); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("expected [B C], got %v", got)
	}

	results, err = Fuse("", d, sparse, uniform(d, 0), DefaultFusionParams(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("expected all 3 documents, got %d", len(results))
	}
}

func TestFuse_SparseOnly(t *testing.T) {
	d := docs("a", "b")
	results, err := Fuse("", d, map[string]float64{"A": 1, "B": 2}, nil,
		FusionParams{Alpha: 0.6, Boost: 0.1, SparseOnly: true}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(results); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("expected [B A], got %v", got)
	}
	if results[0].Score != 1 || results[0].Dense != 0 {
		t.Errorf("unexpected sparse-only breakdown %+v", results[0])
	}
}

func TestFuse_AlignmentViolation(t *testing.T) {
	d := docs("a", "b")

	tests := []struct {
		name   string
		sparse map[string]float64
		dense  map[string]float64
	}{
		{"missing dense", uniform(d, 1), map[string]float64{"A": 1}},
		{"missing sparse", map[string]float64{"B": 1}, uniform(d, 1)},
		{"foreign dense id", uniform(d, 1), map[string]float64{"A": 1, "Z": 1}},
		{"extra sparse id", map[string]float64{"A": 1, "B": 1, "C": 1}, uniform(d, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fuse("", d, tt.sparse, tt.dense, DefaultFusionParams(), 0)
			if !errors.Is(err, domain.ErrAlignmentViolation) {
				t.Errorf("expected alignment violation, got %v", err)
			}
		})
	}
}

func TestKeyByID(t *testing.T) {
	d := docs("a", "b")
	keyed, err := KeyByID(d, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if keyed["A"] != 1 || keyed["B"] != 2 {
		t.Errorf("unexpected keyed scores %v", keyed)
	}

	if _, err := KeyByID(d, []float64{1}); !errors.Is(err, domain.ErrAlignmentViolation) {
		t.Errorf("expected alignment violation, got %v", err)
	}
}
