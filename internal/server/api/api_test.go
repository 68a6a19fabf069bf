package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeJobs is an in-memory JobController and TunablesController.
type fakeJobs struct {
	mu        sync.Mutex
	status    occupancy.Status
	tunables  occupancy.Tunables
	started   []occupancy.Descriptor
	cancelled int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{tunables: occupancy.DefaultTunables()}
}

func (f *fakeJobs) Start(d occupancy.Descriptor) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status.Processing {
		return "", occupancy.ErrAlreadyRunning
	}
	if d.IsZero() {
		return "", occupancy.ErrMissingSource
	}
	f.started = append(f.started, d)
	f.status.Processing = true
	f.status.JobID = "job-1"
	f.status.Source = d.URI
	return "job-1", nil
}

func (f *fakeJobs) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.status.Processing {
		return false
	}
	f.cancelled++
	return true
}

func (f *fakeJobs) Status() occupancy.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeJobs) Tunables() occupancy.Tunables {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tunables
}

func (f *fakeJobs) SetTunables(t occupancy.Tunables) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tunables = t
	return nil
}

func (f *fakeJobs) setStatus(s occupancy.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeJobs) startedDescriptors() []occupancy.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]occupancy.Descriptor(nil), f.started...)
}

// newUploadRequest builds a multipart POST with the given file under field.
func newUploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
