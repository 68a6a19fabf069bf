package api

import "net/http"

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	jobs JobController
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(jobs JobController) *StatusHandler {
	return &StatusHandler{jobs: jobs}
}

// ServeHTTP writes the current job status snapshot.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.jobs.Status())
}
