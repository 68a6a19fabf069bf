// Package api provides HTTP API handlers for the roomcount service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// JobController starts, cancels and reports on analysis jobs.
// *occupancy.Manager implements it.
type JobController interface {
	Start(d occupancy.Descriptor) (string, error)
	Cancel() bool
	Status() occupancy.Status
}

// TunablesController reads and replaces the counting thresholds used by the
// next job. *occupancy.Manager implements it.
type TunablesController interface {
	Tunables() occupancy.Tunables
	SetTunables(t occupancy.Tunables) error
}

var (
	_ JobController      = (*occupancy.Manager)(nil)
	_ TunablesController = (*occupancy.Manager)(nil)
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
