package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gallery"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/testdata"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// newTestApp creates an App over a synthetic scene of alice and bob. When
// primed is true one tick has run, so a latest frame is available.
func newTestApp(t *testing.T, s *store.Store, primed bool) *app.App {
	t.Helper()

	g, err := gallery.Open(filepath.Join(t.TempDir(), "faces.json"), gallery.Options{Dimension: testdata.Dimension})
	if err != nil {
		t.Fatalf("failed to open gallery: %v", err)
	}

	cam := capture.NewMockCamera([]*capture.Frame{testdata.Scene(testdata.Alice, testdata.Bob)}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("failed to open camera: %v", err)
	}

	a, err := app.New(app.Config{
		Camera:    cam,
		Detector:  detector.NewMockDetector(),
		Embedder:  testdata.ColourEmbedder(),
		Gallery:   g,
		Store:     s,
		PatchSize: 16,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	if primed {
		if err := a.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		a.Wait()
	}
	return a
}
