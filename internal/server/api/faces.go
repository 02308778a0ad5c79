package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/embedder"
	"github.com/ayusman/drishti/internal/gallery"
)

// FaceHandler serves the gallery: listing, registering and removing faces.
type FaceHandler struct {
	app *app.App
}

// NewFaceHandler creates a new FaceHandler backed by a.
func NewFaceHandler(a *app.App) *FaceHandler {
	return &FaceHandler{app: a}
}

// ServeHTTP routes /api/faces and /api/faces/{name}.
func (h *FaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/faces")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.register(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	name, err := url.PathUnescape(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid face name")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, name)
	case http.MethodDelete:
		h.delete(w, r, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type registerRequest struct {
	Name string       `json:"name"`
	Box  detector.Box `json:"box"`
}

type faceResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

type listFacesResponse struct {
	Faces []faceResponse `json:"faces"`
	Count int            `json:"count"`
}

// list handles GET /api/faces.
func (h *FaceHandler) list(w http.ResponseWriter, r *http.Request) {
	all := h.app.Gallery().ListAll()

	response := listFacesResponse{Faces: make([]faceResponse, 0, len(all))}
	for _, name := range h.app.Gallery().Names() {
		emb, ok := all[name]
		if !ok {
			continue
		}
		response.Faces = append(response.Faces, faceResponse{Name: name, Dimension: len(emb)})
	}
	response.Count = len(response.Faces)

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/faces/{name}.
func (h *FaceHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	emb, ok := h.app.Gallery().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Face not found")
		return
	}
	writeJSON(w, http.StatusOK, faceResponse{Name: name, Dimension: len(emb)})
}

// register handles POST /api/faces. The face is cropped from the most
// recent camera frame.
func (h *FaceHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	reg, err := h.app.RegisterFace(r.Context(), req.Name, req.Box, nil)
	if err != nil {
		status, message := registrationError(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// registrationError maps a registration failure to a status and message.
func registrationError(err error) (int, string) {
	switch {
	case errors.Is(err, gallery.ErrEmptyName), errors.Is(err, app.ErrNoFaceInBox),
		errors.Is(err, embedder.ErrEmptyPatch), errors.Is(err, gallery.ErrInvalidEmbedding):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrDuplicateFace):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrNoFrame):
		return http.StatusServiceUnavailable, "No camera frame available"
	case errors.Is(err, embedder.ErrExtraction):
		return http.StatusBadGateway, "Failed to extract embedding"
	default:
		return http.StatusInternalServerError, "Failed to register face"
	}
}

// delete handles DELETE /api/faces/{name}. Deleting an unknown name
// succeeds.
func (h *FaceHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.app.RemoveFace(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove face")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
