package embedder

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoSamples is returned by Average when given nothing to average.
var ErrNoSamples = errors.New("no embeddings provided")

// Embedding is a fixed-length face descriptor.
type Embedding []float32

// Clone returns an independent copy.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Equal reports whether both embeddings hold bit-identical values.
func (e Embedding) Equal(other Embedding) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if math.Float32bits(e[i]) != math.Float32bits(other[i]) {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns an L2-normalised copy. A zero vector is returned
// unchanged.
func (e Embedding) Normalize() Embedding {
	norm := e.Norm()
	if norm == 0 {
		return e.Clone()
	}
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Average combines several captures of the same person into one
// normalised embedding. All samples must have the same length.
func Average(samples []Embedding) (Embedding, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	dim := len(samples[0])
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("sample %d has %d values, expected %d", i, len(s), dim)
		}
	}

	sums := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			sums[i] += float64(v)
		}
	}

	n := float64(len(samples))
	averaged := make(Embedding, dim)
	for i := range sums {
		averaged[i] = float32(sums[i] / n)
	}
	return averaged.Normalize(), nil
}
