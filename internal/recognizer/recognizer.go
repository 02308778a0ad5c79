// Package recognizer matches face embeddings against a gallery snapshot.
package recognizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ayusman/drishti/internal/embedder"
)

// Unknown is the name reported when nothing in the gallery is close enough.
const Unknown = "unknown"

// DefaultThreshold is the largest Euclidean distance still accepted as a
// match for L2-normalised embeddings.
const DefaultThreshold = 1.0

// ErrDimensionMismatch is returned when the query and a gallery entry have
// different lengths.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Match is the outcome of comparing a query with a gallery.
type Match struct {
	Name     string  // Matched name or Unknown
	Distance float64 // Euclidean distance to the closest entry; +Inf for an empty gallery
	Score    float64 // 1 / (1 + Distance)
}

// Known reports whether the match names a registered person.
func (m Match) Known() bool {
	return m.Name != Unknown
}

// Recognize returns the gallery entry closest to query when its distance is
// at most threshold, and Unknown otherwise. Entries are scanned in sorted
// name order, so ties go to the lexically first name.
func Recognize(query embedder.Embedding, gallery map[string]embedder.Embedding, threshold float64) (Match, error) {
	ranked, err := Rank(query, gallery, 1)
	if err != nil {
		return Match{}, err
	}
	if len(ranked) == 0 || ranked[0].Distance > threshold {
		best := Match{Name: Unknown, Distance: math.Inf(1)}
		if len(ranked) > 0 {
			best.Distance = ranked[0].Distance
			best.Score = ranked[0].Score
		}
		return best, nil
	}
	return ranked[0], nil
}

// Rank returns up to limit gallery entries ordered by increasing distance
// to query. A limit of zero or less returns every entry.
func Rank(query embedder.Embedding, gallery map[string]embedder.Embedding, limit int) ([]Match, error) {
	names := make([]string, 0, len(gallery))
	for name := range gallery {
		names = append(names, name)
	}
	sort.Strings(names)

	matches := make([]Match, 0, len(names))
	for _, name := range names {
		distance, err := Distance(query, gallery[name])
		if err != nil {
			return nil, fmt.Errorf("compare with %q: %w", name, err)
		}
		matches = append(matches, Match{
			Name:     name,
			Distance: distance,
			Score:    1.0 / (1.0 + distance),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Distance returns the Euclidean distance between two embeddings of equal
// length.
func Distance(a, b embedder.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Recognizer holds a threshold that can be tuned while the pipeline runs.
type Recognizer struct {
	mu        sync.RWMutex
	threshold float64
}

// New creates a Recognizer. A non-positive threshold selects
// DefaultThreshold.
func New(threshold float64) *Recognizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Recognizer{threshold: threshold}
}

// Threshold returns the current threshold.
func (r *Recognizer) Threshold() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

// SetThreshold replaces the threshold. Non-positive values are rejected.
func (r *Recognizer) SetThreshold(threshold float64) error {
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return fmt.Errorf("invalid threshold %v", threshold)
	}
	r.mu.Lock()
	r.threshold = threshold
	r.mu.Unlock()
	return nil
}

// Recognize matches query against gallery with the current threshold.
func (r *Recognizer) Recognize(query embedder.Embedding, gallery map[string]embedder.Embedding) (Match, error) {
	return Recognize(query, gallery, r.Threshold())
}
