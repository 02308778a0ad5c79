package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
	"github.com/ayusman/drishti/internal/gallery"
	"github.com/ayusman/drishti/internal/hook"
	"github.com/ayusman/drishti/internal/recognizer"
	"github.com/ayusman/drishti/internal/store"
)

// Sample is one capture of a face used for registration.
type Sample struct {
	Frame *capture.Frame
	Box   detector.Box
}

// Registration describes a completed gallery enrolment.
type Registration struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Samples int    `json:"samples"`
}

// RegisterFace crops box out of frame, embeds it and stores the result in
// the gallery under name. A nil frame selects the latest camera frame.
func (a *App) RegisterFace(ctx context.Context, name string, box detector.Box, frame *capture.Frame) (*Registration, error) {
	if frame == nil {
		frame = a.LatestFrame()
	}
	if frame == nil {
		return nil, ErrNoFrame
	}
	return a.RegisterSamples(ctx, name, []Sample{{Frame: frame, Box: box}})
}

// RegisterSamples embeds every sample, averages the embeddings and stores
// the result under name. Registering a face that already matches a
// different name fails with ErrDuplicateFace; re-registering the same name
// replaces its entry.
func (a *App) RegisterSamples(ctx context.Context, name string, samples []Sample) (*Registration, error) {
	if name == "" {
		return nil, gallery.ErrEmptyName
	}
	if len(samples) == 0 {
		return nil, embedder.ErrNoSamples
	}

	embeddings := make([]embedder.Embedding, 0, len(samples))
	for i, s := range samples {
		if s.Frame == nil {
			return nil, fmt.Errorf("sample %d: %w", i, ErrNoFrame)
		}
		if !s.Box.Clamp(s.Frame.Width, s.Frame.Height).Valid() {
			return nil, fmt.Errorf("sample %d: %w", i, ErrNoFaceInBox)
		}

		emb, err := a.embed(ctx, s.Frame, s.Box)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		embeddings = append(embeddings, emb)
	}

	emb, err := embedder.Average(embeddings)
	if err != nil {
		return nil, err
	}

	if err := a.addUnique(name, emb); err != nil {
		return nil, err
	}

	reg := &Registration{Name: name, Samples: len(samples)}
	if a.config.Store != nil {
		record := &store.Registration{Name: name, Samples: len(samples)}
		if err := a.config.Store.Registrations().Create(record); err != nil {
			a.log.Warn("record registration", "name", name, "err", err)
		} else {
			reg.ID = record.ID
		}
	}

	if a.config.Hooks != nil {
		a.config.Hooks.Fire(context.WithoutCancel(ctx), hook.Request{
			Event:          hook.EventRegistered,
			Name:           name,
			RegistrationID: reg.ID,
		})
	}

	a.log.Info("registered face", "name", name, "samples", len(samples))
	return reg, nil
}

// addUnique adds emb under name unless it duplicates another person. The check
// and the write happen under one lock.
func (a *App) addUnique(name string, emb embedder.Embedding) error {
	a.registerMu.Lock()
	defer a.registerMu.Unlock()

	if err := a.checkDuplicate(name, emb); err != nil {
		return err
	}
	return a.config.Gallery.Add(name, emb)
}

// checkDuplicate fails when emb is within the threshold of a gallery entry
// other than name.
func (a *App) checkDuplicate(name string, emb embedder.Embedding) error {
	others := a.config.Gallery.ListAll()
	delete(others, name)

	ranked, err := recognizer.Rank(emb, others, 1)
	if err != nil {
		return err
	}
	if len(ranked) > 0 && ranked[0].Distance <= a.recognizer.Threshold() {
		return fmt.Errorf("%w: matches %q at distance %.3f", ErrDuplicateFace, ranked[0].Name, ranked[0].Distance)
	}
	return nil
}

// RemoveFace deletes name from the gallery along with its registration
// records. Removing an unknown name succeeds.
func (a *App) RemoveFace(ctx context.Context, name string) error {
	if err := a.config.Gallery.Remove(name); err != nil {
		return err
	}

	if a.config.Store != nil {
		if _, err := a.config.Store.Registrations().DeleteByName(name); err != nil && !errors.Is(err, store.ErrNotFound) {
			a.log.Warn("delete registrations", "name", name, "err", err)
		}
	}
	a.cooldown.Forget(name)

	if a.config.Hooks != nil {
		a.config.Hooks.Fire(context.WithoutCancel(ctx), hook.Request{
			Event: hook.EventRemoved,
			Name:  name,
		})
	}

	a.log.Info("removed face", "name", name)
	return nil
}
