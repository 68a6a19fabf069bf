package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a source name is already taken.
	ErrDuplicateName = errors.New("name already exists")
)

// Source is a named video source stored in the database: a file path, a
// stream URL, or a camera device index.
type Source struct {
	ID        string
	Name      string
	URI       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceRepository provides CRUD operations for saved sources.
type SourceRepository struct {
	db *sql.DB
}

// Sources returns the source repository for this store.
func (s *Store) Sources() *SourceRepository {
	return &SourceRepository{db: s.db}
}

// Create inserts a new source. An empty ID is replaced with a fresh UUID.
func (r *SourceRepository) Create(src *Source) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO sources (id, name, uri, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		src.ID, src.Name, src.URI, src.CreatedAt, src.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(id string) (*Source, error) {
	return r.scanOne(
		`SELECT id, name, uri, created_at, updated_at FROM sources WHERE id = ?`,
		id,
	)
}

// GetByName retrieves a source by its name.
func (r *SourceRepository) GetByName(name string) (*Source, error) {
	return r.scanOne(
		`SELECT id, name, uri, created_at, updated_at FROM sources WHERE name = ?`,
		name,
	)
}

func (r *SourceRepository) scanOne(query string, arg any) (*Source, error) {
	src := &Source{}
	err := r.db.QueryRow(query, arg).
		Scan(&src.ID, &src.Name, &src.URI, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

// List retrieves all sources, newest first.
func (r *SourceRepository) List() ([]*Source, error) {
	rows, err := r.db.Query(
		`SELECT id, name, uri, created_at, updated_at
		 FROM sources ORDER BY created_at DESC, name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src := &Source{}
		if err := rows.Scan(&src.ID, &src.Name, &src.URI, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sources, nil
}

// Update updates an existing source's name and URI.
func (r *SourceRepository) Update(src *Source) error {
	src.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE sources SET name = ?, uri = ?, updated_at = ? WHERE id = ?`,
		src.Name, src.URI, src.UpdatedAt, src.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a source from the database by its ID.
func (r *SourceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
