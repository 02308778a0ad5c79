// Package embedder turns cropped face regions into fixed-length embeddings.
package embedder

import (
	"context"
	"errors"
)

// ErrExtraction wraps any failure reported by an embedder implementation.
var ErrExtraction = errors.New("embedding extraction failed")

// Default model geometry.
const (
	DefaultPatchSize = 112
	DefaultDimension = 192
)

// Embedder extracts an embedding from a normalised face patch.
type Embedder interface {
	Embed(ctx context.Context, patch Patch) (Embedding, error)
	Close() error
}

// Config holds configuration options for embedding extraction.
type Config struct {
	Script    string
	Python    string
	DataDir   string
	Dimension int
	PatchSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Script:    "face_embedder_service.py",
		Dimension: DefaultDimension,
		PatchSize: DefaultPatchSize,
	}
}
