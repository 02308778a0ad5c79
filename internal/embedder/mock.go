package embedder

import (
	"context"
	"sync"
)

// MockEmbedder is a test implementation of the Embedder interface.
type MockEmbedder struct {
	mu    sync.Mutex
	fn    func(Patch) (Embedding, error)
	calls int
}

// NewMockEmbedder returns an embedder that answers with fn.
func NewMockEmbedder(fn func(Patch) (Embedding, error)) *MockEmbedder {
	return &MockEmbedder{fn: fn}
}

// Fixed returns a mock that always answers with emb.
func Fixed(emb Embedding) *MockEmbedder {
	return NewMockEmbedder(func(Patch) (Embedding, error) {
		return emb.Clone(), nil
	})
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetFunc replaces the answer function.
func (m *MockEmbedder) SetFunc(fn func(Patch) (Embedding, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

func (m *MockEmbedder) Embed(ctx context.Context, patch Patch) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	fn := m.fn
	m.mu.Unlock()
	return fn(patch)
}

func (m *MockEmbedder) Close() error { return nil }
