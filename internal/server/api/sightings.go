package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/drishti/internal/store"
)

const (
	defaultSightingLimit = 50
	maxSightingLimit     = 500
)

// SightingHandler serves the recognition history.
type SightingHandler struct {
	store *store.Store
}

// NewSightingHandler creates a new SightingHandler with the given store.
func NewSightingHandler(s *store.Store) *SightingHandler {
	return &SightingHandler{store: s}
}

type listSightingsResponse struct {
	Sightings []*store.Sighting `json:"sightings"`
}

type pruneSightingsResponse struct {
	Deleted int64 `json:"deleted"`
}

// ServeHTTP handles GET and DELETE /api/sightings.
//
//	GET    /api/sightings?name=alice&limit=20
//	DELETE /api/sightings?before=2026-01-01T00:00:00Z
func (h *SightingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.prune(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SightingHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultSightingLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSightingLimit)
	}

	var (
		sightings []*store.Sighting
		err       error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		sightings, err = h.store.Sightings().ListByName(name, limit)
	} else {
		sightings, err = h.store.Sightings().ListRecent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sightings")
		return
	}

	if sightings == nil {
		sightings = []*store.Sighting{}
	}
	writeJSON(w, http.StatusOK, listSightingsResponse{Sightings: sightings})
}

func (h *SightingHandler) prune(w http.ResponseWriter, r *http.Request) {
	before, err := time.Parse(time.RFC3339, r.URL.Query().Get("before"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
		return
	}

	deleted, err := h.store.Sightings().DeleteOlderThan(before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete sightings")
		return
	}
	writeJSON(w, http.StatusOK, pruneSightingsResponse{Deleted: deleted})
}
