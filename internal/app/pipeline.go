package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
	"github.com/ayusman/drishti/internal/hook"
	"github.com/ayusman/drishti/internal/recognizer"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/yuv"
)

// Result is one recognised face in a processed frame.
type Result struct {
	Box        detector.Box `json:"box"`
	Name       string       `json:"name"`
	Distance   float64      `json:"distance"`
	TrackingID int          `json:"tracking_id"`
	Tracked    bool         `json:"tracked"`
	Cached     bool         `json:"cached"`
}

// Results is everything recognised in one processed tick, in detector
// order.
type Results struct {
	Seq       uint64    `json:"seq"`
	Tick      uint64    `json:"tick"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Faces     []Result  `json:"faces"`
	Timestamp time.Time `json:"timestamp"`
}

// runPipeline drives Tick at a fixed period until stopCh closes, then
// closes done.
func (a *App) runPipeline(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := a.Tick(ctx); err != nil {
				a.log.Debug("tick", "err", err)
			}
		}
	}
}

// Tick acquires one frame and, unless the tick is decimated, recognition is
// disabled or every worker is busy, starts processing it in the
// background. Tick never waits for detection or embedding.
func (a *App) Tick(ctx context.Context) error {
	if a.config.Camera == nil || a.config.Detector == nil {
		return ErrNotConfigured
	}

	tick := a.ticks.Add(1)

	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	if frame == nil {
		return ErrNoFrame
	}

	a.mu.Lock()
	a.latest = frame
	enabled := a.enabled
	a.mu.Unlock()

	if !enabled || (tick-1)%uint64(a.config.ProcessEvery) != 0 {
		return nil
	}

	var conv *yuv.Converter
	select {
	case conv = <-a.converters:
	default:
		a.stats.skipped.Add(1)
		a.log.Debug("skipping tick, all workers busy", "tick", tick)
		return nil
	}

	seq := a.seq.Add(1)
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		defer func() { a.converters <- conv }()

		tickCtx, cancel := context.WithTimeout(ctx, a.config.TickTimeout)
		defer cancel()

		results := a.process(tickCtx, conv, frame)
		results.Seq = seq
		results.Tick = tick
		if a.emit(results) {
			a.recordSightings(ctx, results)
		}
	}()
	return nil
}

// ProcessFrame runs detection and recognition on frame synchronously and
// returns the results without emitting them.
func (a *App) ProcessFrame(ctx context.Context, frame *capture.Frame) (Results, error) {
	if a.config.Detector == nil {
		return Results{}, ErrNotConfigured
	}
	if frame == nil {
		return Results{}, ErrNoFrame
	}

	var conv *yuv.Converter
	select {
	case conv = <-a.converters:
	case <-ctx.Done():
		return Results{}, ctx.Err()
	}
	defer func() { a.converters <- conv }()

	return a.process(ctx, conv, frame), nil
}

// process converts, detects and recognises. Detection failure yields zero
// faces; a face whose embedding fails is left out.
func (a *App) process(ctx context.Context, conv *yuv.Converter, frame *capture.Frame) Results {
	a.stats.processed.Add(1)

	results := Results{
		Width:     frame.Width,
		Height:    frame.Height,
		Faces:     []Result{},
		Timestamp: time.Now(),
	}

	nv21, err := conv.Convert(frame.Pixels, frame.Width, frame.Height)
	if err != nil {
		a.log.Warn("convert frame", "err", err)
		return results
	}

	faces, err := a.config.Detector.Detect(ctx, detector.Image{NV21: nv21, Width: frame.Width, Height: frame.Height})
	if err != nil {
		a.log.Warn("detection failed", "err", err)
		faces = nil
	}

	if a.cache.ObserveTick(len(faces)) {
		a.log.Debug("embedding cache reset after empty ticks")
	}
	if len(faces) == 0 {
		return results
	}

	snapshot := a.config.Gallery.ListAll()
	for _, face := range faces {
		if !face.Box.Clamp(frame.Width, frame.Height).AtLeast(a.config.MinFaceSize) {
			continue
		}

		emb, cached, err := a.resolveEmbedding(ctx, frame, face)
		if err != nil {
			a.log.Warn("embedding failed, skipping face", "tracking_id", face.TrackingID, "err", err)
			continue
		}

		match, err := a.recognizer.Recognize(emb, snapshot)
		if err != nil {
			a.log.Error("recognition failed", "err", err)
			continue
		}

		results.Faces = append(results.Faces, Result{
			Box:        face.Box,
			Name:       match.Name,
			Distance:   match.Distance,
			TrackingID: face.TrackingID,
			Tracked:    face.Tracked,
			Cached:     cached,
		})
	}
	return results
}

// resolveEmbedding reuses the cached embedding of a tracked face or runs
// the embedder and caches the result for tracked faces.
func (a *App) resolveEmbedding(ctx context.Context, frame *capture.Frame, face detector.Face) (embedder.Embedding, bool, error) {
	if face.Tracked {
		if emb, ok := a.cache.Get(face.TrackingID); ok {
			return emb, true, nil
		}
	}

	emb, err := a.embed(ctx, frame, face.Box)
	if err != nil {
		return nil, false, err
	}

	if face.Tracked {
		a.cache.Put(face.TrackingID, emb)
	}
	return emb, false, nil
}

func (a *App) embed(ctx context.Context, frame *capture.Frame, box detector.Box) (embedder.Embedding, error) {
	patch, err := embedder.PreparePatch(frame.Pixels, frame.Width, frame.Height, box, a.config.PatchSize)
	if err != nil {
		return nil, err
	}

	emb, err := a.config.Embedder.Embed(ctx, patch)
	if err != nil {
		if errors.Is(err, embedder.ErrExtraction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", embedder.ErrExtraction, err)
	}
	return emb, nil
}

// emit hands results to listeners unless a later tick has already been
// emitted. It reports whether the results were delivered.
func (a *App) emit(results Results) bool {
	a.mu.RLock()
	listeners := a.listeners
	a.mu.RUnlock()

	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	if results.Seq <= a.lastEmitted {
		a.stats.stale.Add(1)
		a.log.Debug("dropping stale results", "seq", results.Seq, "last", a.lastEmitted)
		return false
	}
	a.lastEmitted = results.Seq
	a.lastResults = results
	a.stats.emitted.Add(1)

	for _, fn := range listeners {
		fn(results)
	}
	return true
}

// recordSightings stores and announces known faces, at most once per
// person per cooldown window.
func (a *App) recordSightings(ctx context.Context, results Results) {
	if a.config.Store == nil && a.config.Hooks == nil {
		return
	}

	for _, face := range results.Faces {
		if face.Name == recognizer.Unknown || !a.cooldown.Allow(face.Name) {
			continue
		}

		sighting := &store.Sighting{
			Name:     face.Name,
			Distance: face.Distance,
			SeenAt:   results.Timestamp,
		}
		if face.Tracked {
			id := face.TrackingID
			sighting.TrackingID = &id
		}

		if a.config.Store != nil {
			if reg, err := a.config.Store.Registrations().Latest(face.Name); err == nil {
				sighting.RegistrationID = reg.ID
			}
			if err := a.config.Store.Sightings().Create(sighting); err != nil {
				a.log.Warn("record sighting", "name", face.Name, "err", err)
			}
		}

		if a.config.Hooks != nil {
			a.config.Hooks.Fire(context.WithoutCancel(ctx), hook.Request{
				Event:          hook.EventRecognized,
				Name:           face.Name,
				Distance:       face.Distance,
				TrackingID:     sighting.TrackingID,
				SightingID:     sighting.ID,
				RegistrationID: sighting.RegistrationID,
				Timestamp:      results.Timestamp,
			})
		}

		a.log.Info("recognised", "name", face.Name, "distance", face.Distance)
	}
}
