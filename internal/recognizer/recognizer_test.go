package recognizer

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/drishti/internal/embedder"
)

// unit returns a one-hot embedding of length n with v at index i.
func unit(n, i int, v float32) embedder.Embedding {
	e := make(embedder.Embedding, n)
	e[i] = v
	return e
}

func TestRecognize(t *testing.T) {
	e1 := unit(4, 0, 1)
	e2 := unit(4, 1, 1)
	gallery := map[string]embedder.Embedding{"alice": e1, "bob": e2}

	// e1 and e2 are sqrt(2) apart, beyond the threshold.
	if d, _ := Distance(e1, e2); d <= 1.0 {
		t.Fatalf("fixture distance %f must exceed threshold", d)
	}

	t.Run("exact query returns its name", func(t *testing.T) {
		match, err := Recognize(e1, gallery, 1.0)
		if err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
		if match.Name != "alice" {
			t.Errorf("expected alice, got %q", match.Name)
		}
		if match.Distance != 0 || match.Score != 1 {
			t.Errorf("expected zero distance and unit score, got %+v", match)
		}
		if !match.Known() {
			t.Error("expected match to be known")
		}
	})

	t.Run("query far from everyone is unknown", func(t *testing.T) {
		match, err := Recognize(unit(4, 2, 1), gallery, 1.0)
		if err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
		if match.Name != Unknown {
			t.Errorf("expected unknown, got %q", match.Name)
		}
		if math.Abs(match.Distance-math.Sqrt2) > 1e-9 {
			t.Errorf("expected closest distance sqrt(2), got %f", match.Distance)
		}
	})

	t.Run("empty gallery is always unknown", func(t *testing.T) {
		for _, g := range []map[string]embedder.Embedding{nil, {}} {
			match, err := Recognize(e1, g, 1.0)
			if err != nil {
				t.Fatalf("Recognize() error = %v", err)
			}
			if match.Name != Unknown || !math.IsInf(match.Distance, 1) {
				t.Errorf("expected unknown at +Inf, got %+v", match)
			}
		}
	})

	t.Run("distance equal to threshold matches", func(t *testing.T) {
		match, err := Recognize(unit(4, 0, 0.5), map[string]embedder.Embedding{"carol": unit(4, 0, 1)}, 0.5)
		if err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
		if match.Name != "carol" {
			t.Errorf("expected carol at the threshold boundary, got %+v", match)
		}
	})

	t.Run("ties go to the first name in sorted order", func(t *testing.T) {
		g := map[string]embedder.Embedding{"zed": e1.Clone(), "amy": e1.Clone(), "max": e1.Clone()}
		for i := 0; i < 20; i++ {
			match, _ := Recognize(e1, g, 1.0)
			if match.Name != "amy" {
				t.Fatalf("expected amy on tie, got %q", match.Name)
			}
		}
	})
}

func TestRecognize_DimensionMismatch(t *testing.T) {
	gallery := map[string]embedder.Embedding{"alice": {1, 0, 0}}

	_, err := Recognize(embedder.Embedding{1, 0}, gallery, 1.0)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRank(t *testing.T) {
	gallery := map[string]embedder.Embedding{
		"far":  {0, 0, 3},
		"near": {0.1, 0, 0},
		"mid":  {0, 1, 0},
	}

	matches, err := Rank(embedder.Embedding{0, 0, 0}, gallery, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	want := []string{"near", "mid", "far"}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(matches))
	}
	for i, name := range want {
		if matches[i].Name != name {
			t.Errorf("rank %d: expected %s, got %s", i, name, matches[i].Name)
		}
	}

	top, _ := Rank(embedder.Embedding{0, 0, 0}, gallery, 2)
	if len(top) != 2 {
		t.Errorf("expected limit to cap results at 2, got %d", len(top))
	}
}

func TestRecognizer_Threshold(t *testing.T) {
	r := New(0)
	if r.Threshold() != DefaultThreshold {
		t.Errorf("expected default threshold, got %f", r.Threshold())
	}

	gallery := map[string]embedder.Embedding{"alice": {1, 0}}
	query := embedder.Embedding{0.4, 0}

	match, _ := r.Recognize(query, gallery)
	if match.Name != "alice" {
		t.Errorf("expected alice at default threshold, got %q", match.Name)
	}

	if err := r.SetThreshold(0.5); err != nil {
		t.Fatalf("SetThreshold() error = %v", err)
	}
	match, _ = r.Recognize(query, gallery)
	if match.Name != Unknown {
		t.Errorf("expected unknown after tightening threshold, got %q", match.Name)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := r.SetThreshold(bad); err == nil {
			t.Errorf("expected error for threshold %v", bad)
		}
	}
	if r.Threshold() != 0.5 {
		t.Errorf("rejected thresholds must not change the value, got %f", r.Threshold())
	}
}
