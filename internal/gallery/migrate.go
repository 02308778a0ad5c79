package gallery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ayusman/drishti/internal/embedder"
)

// legacyEntry is one element of the older list-shaped gallery file.
type legacyEntry struct {
	Name      string             `json:"name"`
	Embedding embedder.Embedding `json:"embedding"`
}

// Migrate rewrites a list-shaped gallery file
// ([{"name": ..., "embedding": [...]}, ...]) into the mapping shape. Later
// entries win when a name repeats. It reports whether the file was
// rewritten; a missing file or one already in the mapping shape is left
// alone.
func Migrate(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read: %w", ErrIO, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false, nil
	}

	var legacy []legacyEntry
	if err := json.Unmarshal(trimmed, &legacy); err != nil {
		return false, fmt.Errorf("parse legacy gallery: %w", err)
	}

	entries := make(map[string]embedder.Embedding, len(legacy))
	for _, e := range legacy {
		if e.Name == "" {
			continue
		}
		entries[e.Name] = e.Embedding
	}

	g := &Gallery{path: path}
	if err := g.persist(entries); err != nil {
		return false, err
	}
	return true, nil
}
