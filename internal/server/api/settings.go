package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ayusman/curlcount/internal/app"
	"github.com/ayusman/curlcount/internal/geometry"
)

// SettingsService reads and updates counting settings.
type SettingsService interface {
	Settings() app.Settings
	SetSettings(app.Settings) error
	ResetSettings() (app.Settings, error)
}

// SettingsHandler handles HTTP requests for /api/settings.
type SettingsHandler struct {
	service SettingsService
}

// NewSettingsHandler creates a new SettingsHandler for s.
func NewSettingsHandler(s SettingsService) *SettingsHandler {
	return &SettingsHandler{service: s}
}

// settingsRequest carries optional fields; omitted fields keep their values.
type settingsRequest struct {
	LowThreshold  *float64 `json:"low_threshold"`
	HighThreshold *float64 `json:"high_threshold"`
	AngleMode     *string  `json:"angle_mode"`
	MinVisibility *float64 `json:"min_visibility"`
}

type settingsResponse struct {
	LowThreshold  float64 `json:"low_threshold"`
	HighThreshold float64 `json:"high_threshold"`
	AngleMode     string  `json:"angle_mode"`
	MinVisibility float64 `json:"min_visibility"`
}

func toSettingsResponse(s app.Settings) settingsResponse {
	return settingsResponse{
		LowThreshold:  s.Thresholds.Low,
		HighThreshold: s.Thresholds.High,
		AngleMode:     string(s.AngleMode),
		MinVisibility: s.MinVisibility,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toSettingsResponse(h.service.Settings()))
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.reset(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// update handles PUT /api/settings. Changes apply from the next session start.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	s := h.service.Settings()
	if req.LowThreshold != nil {
		s.Thresholds.Low = *req.LowThreshold
	}
	if req.HighThreshold != nil {
		s.Thresholds.High = *req.HighThreshold
	}
	if req.AngleMode != nil {
		s.AngleMode = geometry.Mode(*req.AngleMode)
	}
	if req.MinVisibility != nil {
		s.MinVisibility = *req.MinVisibility
	}

	if err := h.service.SetSettings(s); err != nil {
		if errors.Is(err, app.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// reset handles DELETE /api/settings, dropping persisted overrides.
func (h *SettingsHandler) reset(w http.ResponseWriter) {
	s, err := h.service.ResetSettings()
	if err != nil {
		log.Printf("Failed to reset settings: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to reset settings")
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}
