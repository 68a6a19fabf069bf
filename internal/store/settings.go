package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// CountingKey is the settings key holding the counting tunables override.
const CountingKey = "counting"

// SettingsRepository stores application settings as key-value pairs.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	_, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// LoadTunables returns the persisted counting tunables override, or
// ErrNotFound when none has been saved.
func (r *SettingsRepository) LoadTunables() (occupancy.Tunables, error) {
	raw, err := r.Get(CountingKey)
	if err != nil {
		return occupancy.Tunables{}, err
	}
	var t occupancy.Tunables
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return occupancy.Tunables{}, fmt.Errorf("decode %s setting: %w", CountingKey, err)
	}
	return t, nil
}

// SaveTunables persists t as the counting tunables override.
func (r *SettingsRepository) SaveTunables(t occupancy.Tunables) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.Set(CountingKey, string(raw))
}
