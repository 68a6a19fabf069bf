package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/roomcount/internal/capture"
	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/store"
)

// Job start outcomes reported in the "status" field.
const (
	StatusStarted        = "processing_started"
	StatusAlreadyRunning = "already_running"
	StatusError          = "error"
)

const (
	maxJSONBody      = 1 << 20
	uploadFormMemory = 32 << 20
	missingSourceMsg = "No URL/path provided"
)

var (
	errNoUpload      = errors.New("missing multipart field \"file\"")
	errUnknownSource = errors.New("unknown source id")
)

// JobHandler handles HTTP requests that start and cancel analysis jobs.
type JobHandler struct {
	jobs      JobController
	sources   *store.SourceRepository
	uploadDir string
	logger    *slog.Logger
}

// NewJobHandler creates a JobHandler. s may be nil, in which case jobs can
// only be started from an explicit URL.
func NewJobHandler(jobs JobController, s *store.Store, uploadDir string, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &JobHandler{
		jobs:      jobs,
		uploadDir: uploadDir,
		logger:    logger.With("component", "api"),
	}
	if s != nil {
		h.sources = s.Sources()
	}
	return h
}

// ServeHTTP routes /api/jobs, /api/jobs/upload and /api/jobs/current.
func (h *JobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "upload":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.upload(w, r)
	case "current":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.jobs.Status())
		case http.MethodDelete:
			h.cancel(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

type startJobRequest struct {
	URL      string `json:"url"`
	SourceID string `json:"source_id"`
}

type startJobResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// start handles POST /api/jobs.
func (h *JobHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if h.jobs.Status().Processing {
			writeJSON(w, http.StatusConflict, startJobResponse{Status: StatusAlreadyRunning})
			return
		}
		writeJSON(w, http.StatusBadRequest, startJobResponse{Status: StatusError, Message: "Invalid JSON"})
		return
	}

	d, err := h.resolve(req)
	if err != nil {
		// A running job is reported ahead of a bad request.
		if h.jobs.Status().Processing {
			writeJSON(w, http.StatusConflict, startJobResponse{Status: StatusAlreadyRunning})
			return
		}
		if errors.Is(err, errUnknownSource) {
			writeJSON(w, http.StatusNotFound, startJobResponse{Status: StatusError, Message: "Source not found"})
			return
		}
		h.logger.Warn("failed to resolve saved source", "source_id", req.SourceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, startJobResponse{Status: StatusError, Message: "Failed to load source"})
		return
	}

	code, resp := h.startJob(d)
	writeJSON(w, code, resp)
}

// resolve turns a start request into a descriptor. An explicit URL wins over
// a saved source id.
func (h *JobHandler) resolve(req startJobRequest) (occupancy.Descriptor, error) {
	if strings.TrimSpace(req.URL) != "" || req.SourceID == "" {
		return occupancy.Descriptor{URI: strings.TrimSpace(req.URL)}, nil
	}
	if h.sources == nil {
		return occupancy.Descriptor{}, errUnknownSource
	}
	src, err := h.sources.GetByID(req.SourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return occupancy.Descriptor{}, errUnknownSource
		}
		return occupancy.Descriptor{}, err
	}
	return occupancy.Descriptor{URI: src.URI}, nil
}

// startJob asks the controller to start d and maps the outcome to a status
// code and response body.
func (h *JobHandler) startJob(d occupancy.Descriptor) (int, startJobResponse) {
	jobID, err := h.jobs.Start(d)
	switch {
	case err == nil:
		return http.StatusAccepted, startJobResponse{Status: StatusStarted, JobID: jobID}
	case errors.Is(err, occupancy.ErrAlreadyRunning):
		return http.StatusConflict, startJobResponse{Status: StatusAlreadyRunning}
	case errors.Is(err, occupancy.ErrMissingSource):
		return http.StatusBadRequest, startJobResponse{Status: StatusError, Message: missingSourceMsg}
	default:
		h.logger.Warn("failed to start job", "source", d.URI, "error", err)
		return http.StatusInternalServerError, startJobResponse{Status: StatusError, Message: err.Error()}
	}
}

// upload handles POST /api/jobs/upload.
func (h *JobHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.jobs.Status().Processing {
		writeJSON(w, http.StatusConflict, startJobResponse{Status: StatusAlreadyRunning})
		return
	}

	d, err := h.saveUpload(r)
	if err != nil {
		if errors.Is(err, errNoUpload) {
			writeJSON(w, http.StatusBadRequest, startJobResponse{Status: StatusError, Message: "No file uploaded"})
			return
		}
		h.logger.Warn("failed to store upload", "error", err)
		writeJSON(w, http.StatusInternalServerError, startJobResponse{Status: StatusError, Message: "Failed to store upload"})
		return
	}

	code, resp := h.startJob(d)
	if code != http.StatusAccepted {
		os.Remove(d.URI)
	}
	writeJSON(w, code, resp)
}

// saveUpload copies the multipart "file" field into the upload directory.
func (h *JobHandler) saveUpload(r *http.Request) (occupancy.Descriptor, error) {
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		return occupancy.Descriptor{}, errNoUpload
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return occupancy.Descriptor{}, errNoUpload
	}
	defer file.Close()

	return capture.SaveUpload(h.uploadDir, header.Filename, file)
}

// cancel handles DELETE /api/jobs/current.
func (h *JobHandler) cancel(w http.ResponseWriter, r *http.Request) {
	status := h.jobs.Status()
	if !h.jobs.Cancel() {
		writeError(w, http.StatusNotFound, "No job running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "cancelling",
		"job_id": status.JobID,
	})
}
