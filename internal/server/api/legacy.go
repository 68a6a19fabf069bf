package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// LegacyHandler serves the original flat routes. Every response is HTTP 200;
// callers read the outcome from the "status" field.
type LegacyHandler struct {
	jobs *JobHandler
}

// NewLegacyHandler creates a LegacyHandler backed by the given job handler.
func NewLegacyHandler(jobs *JobHandler) *LegacyHandler {
	return &LegacyHandler{jobs: jobs}
}

// ServeHTTP routes /process_video_url, /process_video_file, /count and /health.
func (h *LegacyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/process_video_url":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.processURL(w, r)
	case "/process_video_file":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.processFile(w, r)
	case "/count":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		status := h.jobs.jobs.Status()
		writeJSON(w, http.StatusOK, countResponse{Count: status.Count, Processing: status.Processing})
	case "/health":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		http.NotFound(w, r)
	}
}

type countResponse struct {
	Count      int  `json:"count"`
	Processing bool `json:"processing"`
}

// processURL handles POST /process_video_url with body {"url": "..."}.
func (h *LegacyHandler) processURL(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if h.jobs.jobs.Status().Processing {
			writeJSON(w, http.StatusOK, startJobResponse{Status: StatusAlreadyRunning})
			return
		}
		writeJSON(w, http.StatusOK, startJobResponse{Status: StatusError, Message: "Invalid JSON"})
		return
	}

	_, resp := h.jobs.startJob(occupancy.Descriptor{URI: strings.TrimSpace(req.URL)})
	resp.JobID = ""
	writeJSON(w, http.StatusOK, resp)
}

// processFile handles POST /process_video_file with multipart field "file".
func (h *LegacyHandler) processFile(w http.ResponseWriter, r *http.Request) {
	if h.jobs.jobs.Status().Processing {
		writeJSON(w, http.StatusOK, startJobResponse{Status: StatusAlreadyRunning})
		return
	}

	d, err := h.jobs.saveUpload(r)
	if err != nil {
		msg := "Failed to store upload"
		if errors.Is(err, errNoUpload) {
			msg = "No file uploaded"
		}
		writeJSON(w, http.StatusOK, startJobResponse{Status: StatusError, Message: msg})
		return
	}

	code, resp := h.jobs.startJob(d)
	if code != http.StatusAccepted {
		os.Remove(d.URI)
	}
	resp.JobID = ""
	writeJSON(w, http.StatusOK, resp)
}
