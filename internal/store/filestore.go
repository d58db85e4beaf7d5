// Package store persists session snapshots to the local filesystem so
// the fleet survives process restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alex2liv/metabridge-API/internal/session"
)

// FileStore writes the full session list as one JSON document. Writes
// go through a per-write temp file plus rename so a crash mid-write
// never leaves a torn snapshot behind, and are serialized so racing
// savers cannot interleave on the same temp path.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a store at path. Blank paths are rejected by
// the caller's config validation, not here.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

// Path returns the snapshot location.
func (f *FileStore) Path() string {
	return f.path
}

// Save persists the given sessions, replacing any previous snapshot.
func (f *FileStore) Save(sessions []session.Session) error {
	if sessions == nil {
		sessions = []session.Session{}
	}
	raw, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create snapshot dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create snapshot temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close snapshot temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: commit snapshot: %w", err)
	}
	return nil
}

// Load reads the previous snapshot. A missing file is an empty fleet,
// not an error.
func (f *FileStore) Load() ([]session.Session, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	var sessions []session.Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("store: decode snapshot (%s): %w", f.path, err)
	}
	return sessions, nil
}
