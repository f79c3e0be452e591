// Package settings persists the dashboard's settings document: an
// opaque JSON object owned by the browser UI (widget layout, theme,
// feature toggles). The backend validates and stores it without
// interpreting its contents.
package settings

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is a mutex-guarded JSON document store backed by a single file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the current settings document. A missing file yields an
// empty object, not an error; an empty dashboard is a legitimate state.
func (s *Store) Load() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return json.RawMessage("{}"), nil
		}
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errors.New("settings file contains invalid JSON")
	}
	return json.RawMessage(data), nil
}

// Save replaces the settings document. The document must be a valid
// JSON object; writes are atomic (temp file + rename, 0600).
func (s *Store) Save(doc json.RawMessage) error {
	var probe map[string]any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return errors.New("settings document must be a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".homeboard-settings-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}
