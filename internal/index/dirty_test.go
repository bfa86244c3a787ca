package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileDirtyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "index.dirty")
	s := NewFileDirtyStore(path)

	dirty, err := s.IsDirty()
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Fatal("fresh store should be clean")
	}

	if err := s.MarkDirty(); err != nil {
		t.Fatalf("MarkDirty: %v", err)
	}
	if dirty, _ = s.IsDirty(); !dirty {
		t.Fatal("store should be dirty after mark")
	}

	// The flag survives a restart: a new instance over the same path sees it.
	if dirty, _ = NewFileDirtyStore(path).IsDirty(); !dirty {
		t.Error("dirty flag not persisted")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if dirty, _ = s.IsDirty(); dirty {
		t.Error("store still dirty after clear")
	}
}

func TestFileDirtyStoreMarkIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dirty")
	s := NewFileDirtyStore(path)

	if err := s.MarkDirty(); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Marking again keeps the original first-change timestamp.
	if err := s.MarkDirty(); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("marker rewritten: %q -> %q", first, second)
	}
}

func TestFileDirtyStoreClearWhenClean(t *testing.T) {
	s := NewFileDirtyStore(filepath.Join(t.TempDir(), "index.dirty"))
	if err := s.Clear(); err != nil {
		t.Errorf("Clear on clean store: %v", err)
	}
}
