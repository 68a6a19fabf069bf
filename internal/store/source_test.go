package store

import (
	"errors"
	"path/filepath"
	"testing"
)

// newTestStore creates a new Store backed by a file in a temp dir.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestSourceRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sources()

	src := &Source{Name: "lobby", URI: "rtsp://10.0.0.5/live"}

	if err := repo.Create(src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	// Verify generated fields
	if src.ID == "" {
		t.Error("ID should be generated on create")
	}
	if src.CreatedAt.IsZero() || src.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}

	retrieved, err := repo.GetByID(src.ID)
	if err != nil {
		t.Fatalf("failed to get source by ID: %v", err)
	}
	if retrieved.Name != src.Name || retrieved.URI != src.URI {
		t.Errorf("source mismatch: got %+v, want %+v", retrieved, src)
	}

	byName, err := repo.GetByName("lobby")
	if err != nil {
		t.Fatalf("failed to get source by name: %v", err)
	}
	if byName.ID != src.ID {
		t.Errorf("GetByName returned wrong source: got ID %q, want %q", byName.ID, src.ID)
	}
}

func TestSourceRepository_Create_KeepsExplicitID(t *testing.T) {
	repo := newTestStore(t).Sources()

	src := &Source{ID: "cam-1", Name: "hall", URI: "0"}
	if err := repo.Create(src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	if src.ID != "cam-1" {
		t.Errorf("ID = %q, want cam-1", src.ID)
	}
}

func TestSourceRepository_Create_DuplicateName(t *testing.T) {
	repo := newTestStore(t).Sources()

	if err := repo.Create(&Source{Name: "lobby", URI: "0"}); err != nil {
		t.Fatalf("failed to create first source: %v", err)
	}

	err := repo.Create(&Source{Name: "lobby", URI: "1"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestSourceRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestStore(t).Sources()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceRepository_List(t *testing.T) {
	repo := newTestStore(t).Sources()

	sources, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list sources: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected empty list, got %d", len(sources))
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := repo.Create(&Source{Name: name, URI: name + ".mp4"}); err != nil {
			t.Fatalf("failed to create source %s: %v", name, err)
		}
	}

	sources, err = repo.List()
	if err != nil {
		t.Fatalf("failed to list sources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
}

func TestSourceRepository_Update(t *testing.T) {
	repo := newTestStore(t).Sources()

	src := &Source{Name: "lobby", URI: "0"}
	if err := repo.Create(src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	src.Name = "front door"
	src.URI = "rtsp://door/live"
	if err := repo.Update(src); err != nil {
		t.Fatalf("failed to update source: %v", err)
	}

	got, err := repo.GetByID(src.ID)
	if err != nil {
		t.Fatalf("failed to get source: %v", err)
	}
	if got.Name != "front door" || got.URI != "rtsp://door/live" {
		t.Errorf("update not persisted: %+v", got)
	}

	t.Run("missing source", func(t *testing.T) {
		err := repo.Update(&Source{ID: "missing", Name: "x", URI: "y"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("name collision", func(t *testing.T) {
		other := &Source{Name: "garage", URI: "1"}
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create source: %v", err)
		}
		other.Name = "front door"
		if err := repo.Update(other); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("expected ErrDuplicateName, got %v", err)
		}
	})
}

func TestSourceRepository_Delete(t *testing.T) {
	repo := newTestStore(t).Sources()

	src := &Source{Name: "lobby", URI: "0"}
	if err := repo.Create(src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	if err := repo.Delete(src.ID); err != nil {
		t.Fatalf("failed to delete source: %v", err)
	}
	if _, err := repo.GetByID(src.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(src.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
