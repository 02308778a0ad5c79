package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gallery"
	"github.com/ayusman/drishti/internal/hook"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/testdata"
)

// eventually polls cond until it holds or a deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// writeRecorderHook installs a hook that appends every request to out.
func writeRecorderHook(t *testing.T, hookDir, out string) {
	t.Helper()

	dir := filepath.Join(hookDir, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest, _ := json.Marshal(hook.Manifest{
		Name:       "recorder",
		Executable: "record.sh",
		Events:     []string{hook.EventRecognized, hook.EventRegistered, hook.EventRemoved},
	})
	if err := os.WriteFile(filepath.Join(dir, hook.ManifestFile), manifest, 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> " + out + "\necho >> " + out + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "record.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	g, err := gallery.Open(filepath.Join(tmpDir, "faces.json"), gallery.Options{Dimension: testdata.Dimension})
	if err != nil {
		t.Fatalf("gallery.Open() error = %v", err)
	}

	hookDir := filepath.Join(tmpDir, "hooks")
	hookLog := filepath.Join(tmpDir, "hook.log")
	writeRecorderHook(t, hookDir, hookLog)
	manager := hook.NewManager(hookDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	det := detector.NewMockDetector()
	application, err := app.New(app.Config{
		Camera:           capture.NewMockCamera([]*capture.Frame{testdata.Scene(testdata.Alice, testdata.Bob)}, true),
		Detector:         det,
		Embedder:         testdata.ColourEmbedder(),
		Gallery:          g,
		Store:            s,
		Hooks:            hook.NewDispatcher(manager, hook.NewExecutor(5*time.Second), nil),
		TickInterval:     5 * time.Millisecond,
		PatchSize:        16,
		SightingCooldown: time.Hour,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	srv := server.New(server.Config{App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	eventually(t, "first frame", func() bool { return application.LatestFrame() != nil })

	t.Run("RegisterFace", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"name": "alice", "box": testdata.Alice.Box})
		resp, err := client.Post(ts.URL+"/api/faces", "application/json", bytes.NewBuffer(body))
		if err != nil {
			t.Fatalf("register error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("LiveResults", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/results", nil)
		if err != nil {
			t.Fatalf("websocket dial error = %v", err)
		}
		defer conn.Close()

		det.SetFaces(testdata.TrackedFaces(testdata.Alice, testdata.Bob))

		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for {
			var results app.Results
			if err := conn.ReadJSON(&results); err != nil {
				t.Fatalf("no recognition results: %v", err)
			}
			if len(results.Faces) != 2 {
				continue
			}
			if results.Faces[0].Name != "alice" || results.Faces[1].Name != "unknown" {
				t.Fatalf("unexpected results %+v", results.Faces)
			}
			break
		}
	})

	t.Run("SightingRecorded", func(t *testing.T) {
		eventually(t, "sighting", func() bool {
			sightings, err := s.Sightings().ListByName("alice", 10)
			return err == nil && len(sightings) == 1
		})
	})

	t.Run("DisableViaSettings", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", strings.NewReader(`{"enabled": false}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/settings error = %v", err)
		}
		resp.Body.Close()

		if application.IsEnabled() {
			t.Error("expected recognition to be disabled")
		}
		enabled, err := s.Settings().GetBool(store.SettingEnabled)
		if err != nil || enabled {
			t.Errorf("expected disabled state persisted, got %v (%v)", enabled, err)
		}
		application.SetEnabled(true)
	})

	t.Run("RemoveFace", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/faces/alice", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("DELETE error = %v", err)
		}
		resp.Body.Close()

		if g.Len() != 0 {
			t.Errorf("expected empty gallery, got %d faces", g.Len())
		}
	})

	t.Run("HooksFired", func(t *testing.T) {
		eventually(t, "hook events", func() bool {
			data, err := os.ReadFile(hookLog)
			if err != nil {
				return false
			}
			log := string(data)
			return strings.Contains(log, `"event":"registered"`) &&
				strings.Contains(log, `"event":"recognized"`) &&
				strings.Contains(log, `"event":"removed"`)
		})
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()
	})
}

func TestE2E_GalleryPersistsAcrossRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	path := filepath.Join(t.TempDir(), "faces.json")
	ctx := context.Background()
	scene := testdata.Scene(testdata.Alice, testdata.Bob, testdata.Carol)

	newApp := func(det *detector.MockDetector) *app.App {
		g, err := gallery.Open(path, gallery.Options{Dimension: testdata.Dimension})
		if err != nil {
			t.Fatalf("gallery.Open() error = %v", err)
		}
		a, err := app.New(app.Config{Detector: det, Embedder: testdata.ColourEmbedder(), Gallery: g, PatchSize: 16})
		if err != nil {
			t.Fatalf("app.New() error = %v", err)
		}
		return a
	}

	first := newApp(detector.NewMockDetector())
	for _, p := range []testdata.Person{testdata.Alice, testdata.Bob} {
		if _, err := first.RegisterFace(ctx, p.Name, p.Box, scene); err != nil {
			t.Fatalf("RegisterFace(%s) error = %v", p.Name, err)
		}
	}

	det := detector.NewMockDetector()
	det.SetFaces(testdata.Faces(testdata.Carol, testdata.Bob, testdata.Alice))
	second := newApp(det)

	results, err := second.ProcessFrame(ctx, scene)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	want := []string{"unknown", "bob", "alice"}
	if len(results.Faces) != len(want) {
		t.Fatalf("expected %d faces, got %d", len(want), len(results.Faces))
	}
	for i, f := range results.Faces {
		if f.Name != want[i] {
			t.Errorf("face %d = %s, want %s", i, f.Name, want[i])
		}
	}
}

func TestE2E_LegacyGalleryMigration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	path := filepath.Join(t.TempDir(), "faces.json")
	legacy := `[{"name":"alice","embedding":[1,0,0,0]},{"name":"bob","embedding":[0,0,1,0]}]`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	migrated, err := gallery.Migrate(path)
	if err != nil || !migrated {
		t.Fatalf("Migrate() = %v, %v", migrated, err)
	}

	g, err := gallery.Open(path, gallery.Options{Dimension: testdata.Dimension})
	if err != nil {
		t.Fatalf("gallery.Open() error = %v", err)
	}

	det := detector.NewMockDetector()
	det.SetFaces(testdata.Faces(testdata.Bob))
	a, err := app.New(app.Config{Detector: det, Embedder: testdata.ColourEmbedder(), Gallery: g, PatchSize: 16})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	results, err := a.ProcessFrame(context.Background(), testdata.Scene(testdata.Bob))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results.Faces) != 1 || results.Faces[0].Name != "bob" {
		t.Errorf("expected bob, got %+v", results.Faces)
	}
}
