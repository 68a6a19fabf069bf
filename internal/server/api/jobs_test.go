package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/store"
)

func decodeStart(t *testing.T, rec *httptest.ResponseRecorder) startJobResponse {
	t.Helper()
	var resp startJobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestJobHandler_Start(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		running    bool
		wantCode   int
		wantStatus string
	}{
		{"url accepted", `{"url": "video.mp4"}`, false, http.StatusAccepted, StatusStarted},
		{"missing url", `{}`, false, http.StatusBadRequest, StatusError},
		{"blank url", `{"url": "   "}`, false, http.StatusBadRequest, StatusError},
		{"invalid json", `{"url":`, false, http.StatusBadRequest, StatusError},
		{"already running", `{"url": "video.mp4"}`, true, http.StatusConflict, StatusAlreadyRunning},
		{"running wins over missing url", `{}`, true, http.StatusConflict, StatusAlreadyRunning},
		{"running wins over invalid json", `{"url":`, true, http.StatusConflict, StatusAlreadyRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := newFakeJobs()
			if tt.running {
				jobs.setStatus(occupancy.Status{Processing: true, JobID: "other"})
			}
			h := NewJobHandler(jobs, nil, t.TempDir(), nil)

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			resp := decodeStart(t, rec)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if tt.wantStatus == StatusStarted && resp.JobID != "job-1" {
				t.Errorf("job_id = %q, want job-1", resp.JobID)
			}
			if tt.wantStatus == StatusError && resp.Message == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestJobHandler_StartFromSavedSource(t *testing.T) {
	s := newTestStore(t)
	src := &store.Source{Name: "lobby", URI: "rtsp://lobby/live"}
	if err := s.Sources().Create(src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	jobs := newFakeJobs()
	h := NewJobHandler(jobs, s, t.TempDir(), nil)

	t.Run("known id", func(t *testing.T) {
		body := `{"source_id": "` + src.ID + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
		}
		started := jobs.startedDescriptors()
		if len(started) != 1 || started[0].URI != "rtsp://lobby/live" {
			t.Errorf("started = %+v, want the saved URI", started)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		jobs.setStatus(occupancy.Status{})
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{"source_id": "missing"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("unknown id while running", func(t *testing.T) {
		jobs.setStatus(occupancy.Status{Processing: true})
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{"source_id": "missing"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
	})
}

func TestJobHandler_Upload(t *testing.T) {
	t.Run("stores file and starts a temporary job", func(t *testing.T) {
		jobs := newFakeJobs()
		dir := t.TempDir()
		h := NewJobHandler(jobs, nil, dir, nil)

		req := newUploadRequest(t, "/api/jobs/upload", "file", "clip.MP4", []byte("frames"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
		}
		started := jobs.startedDescriptors()
		if len(started) != 1 {
			t.Fatalf("expected 1 started job, got %d", len(started))
		}
		if !started[0].Temporary {
			t.Error("uploaded source should be temporary")
		}
		data, err := os.ReadFile(started[0].URI)
		if err != nil {
			t.Fatalf("failed to read upload: %v", err)
		}
		if string(data) != "frames" {
			t.Errorf("upload content = %q, want frames", data)
		}
	})

	t.Run("missing file field", func(t *testing.T) {
		h := NewJobHandler(newFakeJobs(), nil, t.TempDir(), nil)

		req := newUploadRequest(t, "/api/jobs/upload", "", "", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("already running stores nothing", func(t *testing.T) {
		jobs := newFakeJobs()
		jobs.setStatus(occupancy.Status{Processing: true})
		dir := t.TempDir()
		h := NewJobHandler(jobs, nil, dir, nil)

		req := newUploadRequest(t, "/api/jobs/upload", "file", "clip.mp4", []byte("frames"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected empty upload dir, found %d entries", len(entries))
		}
	})
}

func TestJobHandler_Cancel(t *testing.T) {
	jobs := newFakeJobs()
	h := NewJobHandler(jobs, nil, t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/current", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("idle cancel: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	jobs.setStatus(occupancy.Status{Processing: true, JobID: "job-7"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/current", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}

	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["job_id"] != "job-7" {
		t.Errorf("job_id = %q, want job-7", resp["job_id"])
	}
	if jobs.cancelled != 1 {
		t.Errorf("cancel calls = %d, want 1", jobs.cancelled)
	}
}

func TestJobHandler_Routing(t *testing.T) {
	h := NewJobHandler(newFakeJobs(), nil, t.TempDir(), nil)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/jobs", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/jobs/upload", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/jobs/current", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/jobs/current", http.StatusOK},
		{http.MethodGet, "/api/jobs/other", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}
