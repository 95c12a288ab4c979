package embeddings

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"parallel", []float32{1, 0}, []float32{2, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		got := Cosine(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Cosine = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if n := Norm(v); math.Abs(n-1) > 1e-6 {
		t.Errorf("Norm after Normalize = %v, want 1", n)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed by Normalize: %v", zero)
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2}, {3, 4}})
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("Mean = %v, want [2 3]", got)
	}

	if Mean(nil) != nil {
		t.Error("Mean(nil) should be nil")
	}

	// Mismatched lengths truncate to shortest.
	got = Mean([][]float32{{2, 2, 2}, {4, 4}})
	if len(got) != 2 {
		t.Errorf("len(Mean) = %d, want 2", len(got))
	}
}
