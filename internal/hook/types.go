// Package hook runs user-supplied executables when people are recognised
// or the gallery changes. Each hook lives in its own directory next to a
// hook.json manifest and receives one JSON request on stdin.
package hook

import (
	"encoding/json"
	"time"
)

// Event names delivered to hooks.
const (
	EventRecognized = "recognized"
	EventRegistered = "registered"
	EventRemoved    = "removed"
)

// Manifest describes a hook's metadata and the events it wants.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
	// People restricts the hook to these names. Empty means everyone.
	People []string        `json:"people,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Request represents the payload sent to a hook.
type Request struct {
	Event          string          `json:"event"`
	Name           string          `json:"name"`
	Distance       float64         `json:"distance,omitempty"`
	TrackingID     *int            `json:"tracking_id,omitempty"`
	SightingID     string          `json:"sighting_id,omitempty"`
	RegistrationID string          `json:"registration_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a hook execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook represents a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribes to event for name.
func (h *Hook) Handles(event, name string) bool {
	subscribed := false
	for _, e := range h.Manifest.Events {
		if e == event {
			subscribed = true
			break
		}
	}
	if !subscribed {
		return false
	}
	if len(h.Manifest.People) == 0 {
		return true
	}
	for _, p := range h.Manifest.People {
		if p == name {
			return true
		}
	}
	return false
}
