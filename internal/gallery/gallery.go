// Package gallery is the durable name to embedding registry used for
// recognition. The whole gallery lives in one JSON object on disk and is
// rewritten atomically on every change.
package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/drishti/internal/embedder"
)

var (
	// ErrIO wraps failures to write the gallery file.
	ErrIO = errors.New("gallery i/o failure")
	// ErrEmptyName is returned when adding an entry without a name.
	ErrEmptyName = errors.New("gallery entry name is empty")
	// ErrInvalidEmbedding is returned for embeddings of the wrong length or
	// holding NaN or Inf values.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// Options tune how a gallery is opened.
type Options struct {
	// Dimension, when positive, is the required embedding length.
	Dimension int
	Logger    *slog.Logger
}

// Gallery is a file-backed mapping from person name to embedding. Reads may
// run concurrently; writes are serialized and each one rewrites the file.
type Gallery struct {
	path    string
	dim     int
	mu      sync.RWMutex
	entries map[string]embedder.Embedding
	log     *slog.Logger
}

// Open loads the gallery at path, creating the file with an empty mapping
// if it does not exist. A file that cannot be read or parsed is logged and
// treated as an empty gallery. Entries that fail validation are dropped.
func Open(path string, opts Options) (*Gallery, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	g := &Gallery{
		path:    path,
		dim:     opts.Dimension,
		entries: make(map[string]embedder.Embedding),
		log:     log.With("gallery", path),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrIO, err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := g.persist(g.entries); err != nil {
			return nil, err
		}
		g.log.Info("created empty gallery")
		return g, nil
	case err != nil:
		g.log.Error("read gallery, continuing with empty gallery", "err", err)
		return g, nil
	}

	entries, err := decode(data)
	if err != nil {
		g.log.Error("parse gallery, continuing with empty gallery", "err", err)
		return g, nil
	}
	for name, emb := range entries {
		if name == "" {
			g.log.Warn("dropping gallery entry with empty name")
			delete(entries, name)
			continue
		}
		if err := g.validate(emb); err != nil {
			g.log.Warn("dropping invalid gallery entry", "name", name, "err", err)
			delete(entries, name)
		}
	}
	g.entries = entries
	g.log.Info("loaded gallery", "entries", len(entries))
	return g, nil
}

// Path returns the backing file.
func (g *Gallery) Path() string {
	return g.path
}

// Add inserts or overwrites the entry for name. The file is rewritten
// before Add returns; on failure the in-memory gallery is unchanged.
func (g *Gallery) Add(name string, emb embedder.Embedding) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := g.validate(emb); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.copyLocked()
	next[name] = emb.Clone()
	if err := g.persist(next); err != nil {
		return err
	}
	g.entries = next
	return nil
}

// Remove deletes the entry for name. Removing an absent name succeeds and
// still rewrites the file.
func (g *Gallery) Remove(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.copyLocked()
	delete(next, name)
	if err := g.persist(next); err != nil {
		return err
	}
	g.entries = next
	return nil
}

// ListAll returns an independent snapshot of every entry.
func (g *Gallery) ListAll() map[string]embedder.Embedding {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.copyLocked()
}

// Get returns a copy of the embedding stored for name.
func (g *Gallery) Get(name string) (embedder.Embedding, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	emb, ok := g.entries[name]
	return emb.Clone(), ok
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Names returns the registered names in sorted order.
func (g *Gallery) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.entries))
	for name := range g.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Gallery) copyLocked() map[string]embedder.Embedding {
	out := make(map[string]embedder.Embedding, len(g.entries))
	for name, emb := range g.entries {
		out[name] = emb.Clone()
	}
	return out
}

func (g *Gallery) validate(emb embedder.Embedding) error {
	if len(emb) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedding)
	}
	if g.dim > 0 && len(emb) != g.dim {
		return fmt.Errorf("%w: length %d, expected %d", ErrInvalidEmbedding, len(emb), g.dim)
	}
	for i, v := range emb {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: value %d is %v", ErrInvalidEmbedding, i, v)
		}
	}
	return nil
}

// persist writes entries to a temporary file in the gallery directory and
// renames it over the gallery file.
func (g *Gallery) persist(entries map[string]embedder.Embedding) error {
	data, err := encode(entries)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(g.path), filepath.Base(g.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, g.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrIO, err)
	}
	return nil
}

// encode serializes entries as a JSON object. Map keys are emitted in
// sorted order so unchanged galleries encode to identical bytes.
func encode(entries map[string]embedder.Embedding) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decode(data []byte) (map[string]embedder.Embedding, error) {
	var entries map[string]embedder.Embedding
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]embedder.Embedding)
	}
	return entries, nil
}
