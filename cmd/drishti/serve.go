package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
	"github.com/ayusman/drishti/internal/gallery"
	"github.com/ayusman/drishti/internal/hook"
	"github.com/ayusman/drishti/internal/recognizer"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/tray"
)

var serveTray bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recognition pipeline and the web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show a system tray menu")
	rootCmd.AddCommand(serveCmd)
}

// services holds everything opened from the data directory.
type services struct {
	gallery *gallery.Gallery
	store   *store.Store
}

// openServices opens the gallery, migrating a legacy file first, and the
// database.
func openServices() (*services, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	migrated, err := gallery.Migrate(cfg.GalleryPath())
	if err != nil {
		return nil, err
	}
	if migrated {
		logger.Info("migrated legacy gallery", "path", cfg.GalleryPath())
	}

	g, err := gallery.Open(cfg.GalleryPath(), gallery.Options{Dimension: cfg.EmbeddingDim, Logger: logger})
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &services{gallery: g, store: st}, nil
}

// newModels creates the detection and embedding services. Neither process
// starts until first use.
func newModels() (detector.Detector, embedder.Embedder, error) {
	det, err := detector.NewSidecarDetector(detector.Config{
		Script:        cfg.DetectorScript,
		Python:        cfg.Python,
		DataDir:       cfg.DataDir,
		MinConfidence: cfg.MinConfidence,
		Tracking:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewSidecarEmbedder(embedder.Config{
		Script:    cfg.EmbedderScript,
		Python:    cfg.Python,
		DataDir:   cfg.DataDir,
		Dimension: cfg.EmbeddingDim,
		PatchSize: cfg.PatchSize,
	}, logger)
	if err != nil {
		det.Close()
		return nil, nil, err
	}
	return det, emb, nil
}

func newHooks() (*hook.Dispatcher, error) {
	manager := hook.NewManager(cfg.HookDir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("discover hooks: %w", err)
	}
	if n := len(manager.List()); n > 0 {
		logger.Info("hooks loaded", "count", n, "dir", cfg.HookDir)
	}
	return hook.NewDispatcher(manager, hook.NewExecutor(cfg.HookTimeout), logger), nil
}

func runServe(ctx context.Context) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.store.Close()

	det, emb, err := newModels()
	if err != nil {
		return err
	}

	hooks, err := newHooks()
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Camera:           capture.NewCamera(cfg.CameraID),
		Detector:         det,
		Embedder:         emb,
		Gallery:          svc.gallery,
		Store:            svc.store,
		Hooks:            hooks,
		Logger:           logger,
		TickInterval:     cfg.TickInterval,
		ProcessEvery:     cfg.ProcessEvery,
		MinFaceSize:      cfg.MinFaceSize,
		Threshold:        cfg.Threshold,
		PatchSize:        cfg.PatchSize,
		MaxInFlight:      cfg.MaxInFlight,
		CacheCapacity:    cfg.CacheCapacity,
		CacheResetAfter:  cfg.CacheResetAfter,
		SightingCooldown: cfg.HookCooldown,
	})
	if err != nil {
		det.Close()
		emb.Close()
		return err
	}

	if err := a.Start(); err != nil {
		a.Stop()
		return err
	}
	defer a.Stop()

	srv := server.New(server.Config{
		StaticDir: findWebDir(),
		App:       a,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, cfg.ListenAddr)
	}()

	daemon.SdNotify(false, daemon.SdNotifyReady)
	logger.Info("drishti ready",
		"listen", cfg.ListenAddr,
		"faces", svc.gallery.Len(),
		"threshold", a.Threshold())

	if serveTray {
		runTray(ctx, cancel, a)
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if err == nil {
		err = <-errCh
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// runTray blocks on the tray menu until Quit is chosen or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App) {
	t := tray.New(a.IsEnabled())
	t.SetFaceCount(a.Gallery().Len())
	t.OnToggle(a.SetEnabled)
	t.OnOpenUI(func() {
		logger.Info("web interface", "url", "http://localhost"+cfg.ListenAddr)
	})
	t.OnQuit(cancel)

	a.OnResults(func(r app.Results) {
		for _, f := range r.Faces {
			if f.Name != recognizer.Unknown {
				t.SetLastRecognised(f.Name)
				break
			}
		}
		t.SetFaceCount(a.Gallery().Len())
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.drishti/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	if cfg.StaticDir != "" {
		return cfg.StaticDir
	}

	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(cfg.DataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
