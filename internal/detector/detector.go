// Package detector defines the face detection capability the frame pipeline
// consumes, plus a sidecar-process implementation and a test double.
package detector

import (
	"context"
	"errors"
)

// ErrDetection wraps any failure reported by a detector implementation.
var ErrDetection = errors.New("face detection failed")

// Image is a frame in NV21 layout as produced by the yuv package.
type Image struct {
	NV21   []byte
	Width  int
	Height int
}

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a frame and returns the faces found in it.
	// Returns an empty slice if no faces are detected.
	Detect(ctx context.Context, img Image) ([]Face, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// Script is the detector service script (default: face_detector_service.py).
	Script string

	// Python overrides the interpreter used to run Script.
	Python string

	// DataDir is an additional location searched for the script.
	DataDir string

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// Tracking asks the service to assign tracking ids across frames.
	Tracking bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Script:        "face_detector_service.py",
		MinConfidence: 0.5,
		Tracking:      true,
	}
}
