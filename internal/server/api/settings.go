package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/store"
)

// SettingsHandler serves the counting tunables at /api/settings/counting.
// GET returns the values the next job will use; PUT validates, persists and
// applies a replacement; DELETE drops the stored override and restores the
// configured values. A running job keeps the values it started with.
type SettingsHandler struct {
	store    *store.Store
	tunables TunablesController
	defaults occupancy.Tunables
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. Invalid defaults fall back
// to the reference tunables.
func NewSettingsHandler(s *store.Store, t TunablesController, defaults occupancy.Tunables, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.Validate() != nil {
		defaults = occupancy.DefaultTunables()
	}
	return &SettingsHandler{store: s, tunables: t, defaults: defaults, logger: logger.With("component", "api")}
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tunables.Tunables())
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.reset(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	// Start from the current values so a partial body only changes what it names.
	t := h.tunables.Tunables()
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.store != nil {
		if err := h.store.Settings().SaveTunables(t); err != nil {
			h.logger.Error("failed to persist counting settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}
	if err := h.tunables.SetTunables(t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("counting settings updated",
		"confirm_frames", t.ConfirmFrames,
		"confidence_threshold", t.ConfidenceThreshold,
		"min_box_area", t.MinBoxArea,
	)
	writeJSON(w, http.StatusOK, t)
}

func (h *SettingsHandler) reset(w http.ResponseWriter) {
	if h.store != nil {
		if err := h.store.Settings().Delete(store.CountingKey); err != nil {
			h.logger.Error("failed to clear counting settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to reset settings")
			return
		}
	}
	if err := h.tunables.SetTunables(h.defaults); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("counting settings reset to configured values")
	writeJSON(w, http.StatusOK, h.defaults)
}
