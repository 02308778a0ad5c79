package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/drishti/internal/app"
)

// SettingsHandler reads and changes runtime recognition settings.
type SettingsHandler struct {
	app *app.App
}

// NewSettingsHandler creates a new SettingsHandler backed by a.
func NewSettingsHandler(a *app.App) *SettingsHandler {
	return &SettingsHandler{app: a}
}

type settingsResponse struct {
	Threshold float64 `json:"threshold"`
	Enabled   bool    `json:"enabled"`
}

type updateSettingsRequest struct {
	Threshold *float64 `json:"threshold"`
	Enabled   *bool    `json:"enabled"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Threshold: h.app.Threshold(),
		Enabled:   h.app.IsEnabled(),
	})
}

// update applies only the fields present in the request.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Threshold != nil {
		if err := h.app.SetThreshold(*req.Threshold); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Enabled != nil {
		h.app.SetEnabled(*req.Enabled)
	}

	h.get(w)
}
