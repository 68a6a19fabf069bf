package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/roomcount/internal/store"
)

// SourceHandler handles HTTP requests for saved sources.
type SourceHandler struct {
	store *store.Store
}

// NewSourceHandler creates a new SourceHandler with the given store.
func NewSourceHandler(s *store.Store) *SourceHandler {
	return &SourceHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sources or /api/sources/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/sources")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sourceRequest struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type sourceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URI       string `json:"uri"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listSourcesResponse struct {
	Sources []sourceResponse `json:"sources"`
}

func toSourceResponse(s *store.Source) sourceResponse {
	return sourceResponse{
		ID:        s.ID,
		Name:      s.Name,
		URI:       s.URI,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/sources.
func (h *SourceHandler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.Sources().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	response := listSourcesResponse{
		Sources: make([]sourceResponse, 0, len(sources)),
	}
	for _, s := range sources {
		response.Sources = append(response.Sources, toSourceResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sources/{id}.
func (h *SourceHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.store.Sources().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, toSourceResponse(src))
}

// create handles POST /api/sources.
func (h *SourceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.URI = strings.TrimSpace(req.URI)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "URI is required")
		return
	}

	src := &store.Source{Name: req.Name, URI: req.URI}
	if err := h.store.Sources().Create(src); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Source name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create source")
		return
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(src))
}

// update handles PUT /api/sources/{id}. Empty fields keep their value.
func (h *SourceHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.store.Sources().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		src.Name = name
	}
	if uri := strings.TrimSpace(req.URI); uri != "" {
		src.URI = uri
	}

	if err := h.store.Sources().Update(src); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			writeError(w, http.StatusConflict, "Source name already exists")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Source not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update source")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSourceResponse(src))
}

// delete handles DELETE /api/sources/{id}.
func (h *SourceHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sources().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
