package embedder

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ayusman/drishti/internal/sidecar"
)

// SidecarEmbedder implements Embedder using an external inference service.
// Each request is the patch size (uint32 big-endian) followed by the patch
// values as little-endian float32; each reply is one JSON line.
type SidecarEmbedder struct {
	config Config
	proc   *sidecar.Process
}

// NewSidecarEmbedder creates an embedder backed by the configured script.
func NewSidecarEmbedder(config Config, log *slog.Logger) (*SidecarEmbedder, error) {
	defaults := DefaultConfig()
	if config.Script == "" {
		config.Script = defaults.Script
	}
	if config.Dimension <= 0 {
		config.Dimension = defaults.Dimension
	}

	proc, err := sidecar.New(sidecar.Config{
		Script:  config.Script,
		Python:  config.Python,
		DataDir: config.DataDir,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	return &SidecarEmbedder{config: config, proc: proc}, nil
}

// Embed runs inference on patch and returns the L2-normalised embedding.
func (e *SidecarEmbedder) Embed(ctx context.Context, patch Patch) (Embedding, error) {
	payload := encodePatch(patch)

	line, err := e.proc.Call(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	emb, err := decodeEmbedding(line, e.config.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return emb.Normalize(), nil
}

// Close shuts down the service process.
func (e *SidecarEmbedder) Close() error {
	return e.proc.Close()
}

func encodePatch(patch Patch) []byte {
	payload := make([]byte, 4+len(patch.Data)*4)
	binary.BigEndian.PutUint32(payload[0:4], uint32(patch.Size))
	for i, v := range patch.Data {
		binary.LittleEndian.PutUint32(payload[4+i*4:], math.Float32bits(v))
	}
	return payload
}

func decodeEmbedding(line []byte, dim int) (Embedding, error) {
	var response struct {
		Embedding []float32 `json:"embedding"`
		Error     string    `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("service error: %s", response.Error)
	}
	if len(response.Embedding) != dim {
		return nil, fmt.Errorf("embedding has %d values, expected %d", len(response.Embedding), dim)
	}
	return Embedding(response.Embedding), nil
}
