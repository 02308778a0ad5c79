// Package app wires the camera, detector, embedder and gallery into the
// live face recognition pipeline of the Drishti service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/drishti/internal/cache"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
	"github.com/ayusman/drishti/internal/gallery"
	"github.com/ayusman/drishti/internal/hook"
	"github.com/ayusman/drishti/internal/recognizer"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/yuv"
)

// Pipeline defaults.
const (
	DefaultTickInterval = 66 * time.Millisecond
	DefaultTickTimeout  = 2 * time.Second
	DefaultMinFaceSize  = 40
	DefaultMaxInFlight  = 2
)

var (
	// ErrNoFrame is returned when the camera has no frame to offer.
	ErrNoFrame = errors.New("no frame available")
	// ErrNoFaceInBox is returned when a registration box misses the frame.
	ErrNoFaceInBox = errors.New("face box does not overlap the frame")
	// ErrDuplicateFace is returned when a face being registered already
	// matches a different gallery entry.
	ErrDuplicateFace = errors.New("face already registered under another name")
	// ErrNotConfigured is returned by Start when no camera or detector is set.
	ErrNotConfigured = errors.New("pipeline needs a camera and a detector")
)

// Config holds configuration options for the application.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Embedder embedder.Embedder
	Gallery  *gallery.Gallery
	// Store and Hooks are optional.
	Store  *store.Store
	Hooks  *hook.Dispatcher
	Logger *slog.Logger

	TickInterval time.Duration
	TickTimeout  time.Duration
	// ProcessEvery runs detection on one tick out of every N.
	ProcessEvery int
	MinFaceSize  int
	Threshold    float64
	PatchSize    int
	// MaxInFlight bounds how many ticks may be processed concurrently.
	// Ticks arriving while all slots are busy are skipped.
	MaxInFlight     int
	CacheCapacity   int
	CacheResetAfter int
	// SightingCooldown rate-limits sightings and hook events per person.
	SightingCooldown time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = DefaultTickTimeout
	}
	if c.ProcessEvery <= 0 {
		c.ProcessEvery = 1
	}
	if c.MinFaceSize <= 0 {
		c.MinFaceSize = DefaultMinFaceSize
	}
	if c.PatchSize <= 0 {
		c.PatchSize = embedder.DefaultPatchSize
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
}

// Stats counts what the pipeline has done since it was created.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Stale     uint64 `json:"stale"`
	Emitted   uint64 `json:"emitted"`
}

// App is the main application that runs recognition on every tick and
// hands results to registered listeners.
type App struct {
	config     Config
	log        *slog.Logger
	cache      *cache.Cache
	recognizer *recognizer.Recognizer
	cooldown   *hook.Cooldown

	// Each in-flight tick owns one converter, so its scratch buffers are
	// never shared.
	converters chan *yuv.Converter

	mu        sync.RWMutex
	enabled   bool
	stopCh    chan struct{}
	loopDone  chan struct{}
	cancel    context.CancelFunc
	listeners []func(Results)
	latest    *capture.Frame

	// registerMu serializes the duplicate check with the gallery write.
	registerMu sync.Mutex

	emitMu      sync.Mutex
	lastEmitted uint64
	lastResults Results

	workers sync.WaitGroup
	ticks   atomic.Uint64
	seq     atomic.Uint64
	stats   struct {
		processed, skipped, stale, emitted atomic.Uint64
	}
}

// New creates a new App instance with the given configuration. Persisted
// settings in the store override the configured threshold and enabled
// state.
func New(config Config) (*App, error) {
	if config.Embedder == nil || config.Gallery == nil {
		return nil, errors.New("app: embedder and gallery are required")
	}
	config.setDefaults()

	a := &App{
		config:     config,
		log:        config.Logger,
		recognizer: recognizer.New(config.Threshold),
		cooldown:   hook.NewCooldown(config.SightingCooldown),
		cache: cache.New(cache.Config{
			Capacity:   config.CacheCapacity,
			ResetAfter: config.CacheResetAfter,
		}),
		converters: make(chan *yuv.Converter, config.MaxInFlight),
		enabled:    true,
	}
	for i := 0; i < config.MaxInFlight; i++ {
		a.converters <- yuv.NewConverter()
	}

	a.loadSettings()
	return a, nil
}

func (a *App) loadSettings() {
	if a.config.Store == nil {
		return
	}
	settings := a.config.Store.Settings()

	threshold, err := settings.GetFloat(store.SettingThreshold)
	switch {
	case err == nil:
		if err := a.recognizer.SetThreshold(threshold); err != nil {
			a.log.Warn("ignoring stored threshold", "err", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		a.log.Warn("read stored threshold", "err", err)
	}

	enabled, err := settings.GetBool(store.SettingEnabled)
	switch {
	case err == nil:
		a.enabled = enabled
	case !errors.Is(err, store.ErrNotFound):
		a.log.Warn("read stored enabled flag", "err", err)
	}
}

// SetEnabled enables or disables recognition. Frames are still acquired
// while disabled so the live stream keeps updating.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
			a.log.Warn("persist enabled flag", "err", err)
		}
	}
}

// IsEnabled returns whether recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Threshold returns the recognition distance threshold.
func (a *App) Threshold() float64 {
	return a.recognizer.Threshold()
}

// SetThreshold changes the recognition threshold and persists it when a
// store is configured.
func (a *App) SetThreshold(threshold float64) error {
	if err := a.recognizer.SetThreshold(threshold); err != nil {
		return err
	}
	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetFloat(store.SettingThreshold, threshold); err != nil {
			return fmt.Errorf("persist threshold: %w", err)
		}
	}
	return nil
}

// OnResults registers fn to receive every emitted Results. Listeners run
// on the pipeline worker and must not block.
func (a *App) OnResults(fn func(Results)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// LastResults returns the most recently emitted results.
func (a *App) LastResults() Results {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	return a.lastResults
}

// LatestFrame returns a copy of the most recently acquired frame, or nil.
func (a *App) LatestFrame() *capture.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest.Clone()
}

// Stats returns pipeline counters.
func (a *App) Stats() Stats {
	return Stats{
		Ticks:     a.ticks.Load(),
		Processed: a.stats.processed.Load(),
		Skipped:   a.stats.skipped.Load(),
		Stale:     a.stats.stale.Load(),
		Emitted:   a.stats.emitted.Load(),
	}
}

// Gallery returns the gallery the pipeline recognises against.
func (a *App) Gallery() *gallery.Gallery {
	return a.config.Gallery
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Start opens the camera and begins the tick loop.
func (a *App) Start() error {
	if a.config.Camera == nil || a.config.Detector == nil {
		return ErrNotConfigured
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.config.Camera.SetFPS(int(time.Second / a.config.TickInterval))

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	go a.runPipeline(ctx, a.stopCh, a.loopDone)

	a.log.Info("recognition pipeline started", "interval", a.config.TickInterval, "process_every", a.config.ProcessEvery)
	return nil
}

// Stop halts the tick loop, waits for it and for in-flight ticks, then
// releases the camera and model services.
func (a *App) Stop() {
	a.mu.Lock()
	loopDone := a.loopDone
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
		a.loopDone = nil
		a.cancel()
	}
	a.mu.Unlock()

	// The loop may be inside Tick; no worker can be added once it returns.
	if loopDone != nil {
		<-loopDone
	}
	a.workers.Wait()

	if a.config.Camera != nil {
		if err := a.config.Camera.Close(); err != nil {
			a.log.Warn("close camera", "err", err)
		}
	}
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			a.log.Warn("close detector", "err", err)
		}
	}
	if err := a.config.Embedder.Close(); err != nil {
		a.log.Warn("close embedder", "err", err)
	}
	if a.config.Hooks != nil {
		a.config.Hooks.Wait()
	}

	a.log.Info("recognition pipeline stopped")
}

// Wait blocks until every in-flight tick has finished.
func (a *App) Wait() {
	a.workers.Wait()
}
