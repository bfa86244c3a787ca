// Package storage defines the content-tree file-system abstraction.
package storage

import "github.com/aldergrove/arbor/internal/models"

// Provider is the interface for content-tree file operations. All paths are
// logical paths relative to the content root; page directories are addressed
// by their ".page" path, with the canonical file at "<path>/page.md".
type Provider interface {
	// List returns metadata for every Markdown page under dir: plain .md
	// files plus .page directories containing a page.md.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the page at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parents as needed.
	Write(path string, content []byte) error
	// Delete removes the page at path. Deleting a .page path removes the
	// whole page directory, assets included.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
