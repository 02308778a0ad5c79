// Package testdata builds synthetic camera scenes for tests. Faces are
// solid coloured squares and the paired embedder maps each colour to its own
// identity, so recognition outcomes are predictable without model services.
package testdata

import (
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
)

// Scene dimensions.
const (
	Width  = 320
	Height = 240
)

// Dimension is the embedding length produced by ColourEmbedder.
const Dimension = 4

// Person is a coloured square standing in for a face.
type Person struct {
	Name   string
	Box    detector.Box
	Colour uint32
}

var (
	Alice = Person{Name: "alice", Box: detector.Box{Left: 10, Top: 10, Right: 110, Bottom: 110}, Colour: 0xffff0000}
	Bob   = Person{Name: "bob", Box: detector.Box{Left: 150, Top: 50, Right: 250, Bottom: 150}, Colour: 0xff0000ff}
	Carol = Person{Name: "carol", Box: detector.Box{Left: 200, Top: 150, Right: 300, Bottom: 230}, Colour: 0xff00ff00}
)

// Embedding returns the identity ColourEmbedder assigns to p.
func (p Person) Embedding() embedder.Embedding {
	emb := make(embedder.Embedding, Dimension)
	switch p.Colour & 0x00ffffff {
	case 0xff0000:
		emb[0] = 1
	case 0x00ff00:
		emb[1] = 1
	case 0x0000ff:
		emb[2] = 1
	default:
		emb[3] = 1
	}
	return emb
}

// Scene returns a black frame with every person painted in.
func Scene(people ...Person) *capture.Frame {
	f := capture.NewFrame(Width, Height)
	for _, p := range people {
		f.Fill(p.Box.Rect(), p.Colour)
	}
	return f
}

// Faces returns untracked detections for people.
func Faces(people ...Person) []detector.Face {
	faces := make([]detector.Face, len(people))
	for i, p := range people {
		faces[i] = detector.Face{Box: p.Box}
	}
	return faces
}

// TrackedFaces returns detections for people with tracking ids 1, 2, ...
func TrackedFaces(people ...Person) []detector.Face {
	faces := make([]detector.Face, len(people))
	for i, p := range people {
		faces[i] = detector.TrackedFace(p.Box, i+1)
	}
	return faces
}

// ColourEmbedder returns a mock embedder that maps the dominant channel of
// a patch to a unit vector: red, green and blue to axes 0, 1 and 2, and
// anything dark to axis 3.
func ColourEmbedder() *embedder.MockEmbedder {
	return embedder.NewMockEmbedder(func(p embedder.Patch) (embedder.Embedding, error) {
		var sums [3]float64
		for i, v := range p.Data {
			sums[i%3] += float64(v)
		}

		emb := make(embedder.Embedding, Dimension)
		best := 3
		for c := 0; c < 3; c++ {
			if sums[c] > 0 && (best == 3 || sums[c] > sums[best]) {
				best = c
			}
		}
		emb[best] = 1
		return emb, nil
	})
}
