// Package models defines the domain types for Arbor.
package models

import "time"

// Article statuses.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// FileMetadata is a lightweight representation returned by content listings.
type FileMetadata struct {
	// Path is the logical path relative to the content root. For page
	// directories this is the directory itself (e.g. "blog/intro.page");
	// the canonical source file lives at Path + "/page.md".
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Garden is a named top-level content collection.
type Garden struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedDate string `json:"created_date,omitempty"`
	Order       int    `json:"order"`
}
