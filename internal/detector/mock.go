package detector

import (
	"context"
	"sync"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []Face
	err   error
	delay <-chan struct{}
	calls int
	last  Image
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes Detect wait until release is closed or the context ends.
func (m *MockDetector) Block(release <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = release
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastImage returns the image passed to the most recent Detect call.
func (m *MockDetector) LastImage() Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(ctx context.Context, img Image) ([]Face, error) {
	m.mu.Lock()
	m.calls++
	m.last = img
	delay := m.delay
	faces := append([]Face(nil), m.faces...)
	err := m.err
	m.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
