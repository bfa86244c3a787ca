package index

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DirtyStore persists the deferred-mode dirty flag across process restarts.
// Marking an already-dirty store is a no-op; only a successful reconcile
// clears it.
type DirtyStore interface {
	IsDirty() (bool, error)
	MarkDirty() error
	Clear() error
}

// FileDirtyStore implements DirtyStore as a marker file whose presence means
// dirty. The file body holds the time of the first unreconciled change, for
// operators peeking at the data directory.
type FileDirtyStore struct {
	path string
}

// NewFileDirtyStore creates a marker-file dirty store at path.
func NewFileDirtyStore(path string) *FileDirtyStore {
	return &FileDirtyStore{path: path}
}

func (s *FileDirtyStore) IsDirty() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("index: stat dirty flag: %w", err)
}

func (s *FileDirtyStore) MarkDirty() error {
	dirty, err := s.IsDirty()
	if err != nil || dirty {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("index: create data dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("index: write dirty flag: %w", err)
	}
	return nil
}

func (s *FileDirtyStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("index: clear dirty flag: %w", err)
	}
	return nil
}
