package garden

import (
	"os"
	"path/filepath"
	"testing"
)

func TestList_DefaultsAndOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, g := range []string{"zeta-notes", "alpha"} {
		if err := os.MkdirAll(filepath.Join(dir, g), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Explicit config with a low order sorts first despite the name.
	cfgYAML := "title: Zeta Notes\ndescription: late letters\norder: 1\n"
	if err := os.WriteFile(filepath.Join(dir, "zeta-notes", "config.yaml"), []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	gardens, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(gardens) != 2 {
		t.Fatalf("len = %d, want 2", len(gardens))
	}
	if gardens[0].Slug != "zeta-notes" {
		t.Errorf("first garden = %q, want zeta-notes (order 1)", gardens[0].Slug)
	}
	if gardens[1].Title != "Alpha" {
		t.Errorf("default title = %q, want Alpha", gardens[1].Title)
	}
}

func TestList_SkipsHiddenAndPageDirs(t *testing.T) {
	dir := t.TempDir()
	for _, g := range []string{".git", "real", "thing.page"} {
		if err := os.MkdirAll(filepath.Join(dir, g), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	gardens, err := NewManager(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(gardens) != 1 || gardens[0].Slug != "real" {
		t.Errorf("gardens = %v", gardens)
	}
}

func TestLoad_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := NewManager(dir).Load("my-garden")
	if cfg.Title != "My Garden" {
		t.Errorf("title = %q, want My Garden", cfg.Title)
	}
	if cfg.Order != defaultOrder {
		t.Errorf("order = %d", cfg.Order)
	}
}

func TestCreateAndExists(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	if m.Exists("blog") {
		t.Error("blog should not exist yet")
	}
	cfg, err := m.Create("blog", "", "things I wrote")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cfg.Title != "Blog" {
		t.Errorf("title = %q", cfg.Title)
	}
	if !m.Exists("blog") {
		t.Error("blog should exist")
	}
	if m.Exists("../blog") {
		t.Error("traversal slug must not exist")
	}
	got := m.Load("blog")
	if got.Description != "things I wrote" {
		t.Errorf("description = %q", got.Description)
	}
}

func TestEnsureConfigs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "bare"), 0o755); err != nil {
		t.Fatal(err)
	}
	created, err := NewManager(dir).EnsureConfigs()
	if err != nil {
		t.Fatalf("EnsureConfigs: %v", err)
	}
	if len(created) != 1 || created[0] != "bare" {
		t.Errorf("created = %v", created)
	}
	if _, err := os.Stat(filepath.Join(dir, "bare", "config.yaml")); err != nil {
		t.Errorf("config.yaml missing: %v", err)
	}
}
