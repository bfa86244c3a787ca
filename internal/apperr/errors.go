// Package apperr defines sentinel errors shared across Arbor layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrIndexUpdate marks a save that wrote content to disk but failed to
	// update the metadata cache or search index. The file on disk reflects
	// the user's edit; the next full reconcile repairs the stores.
	ErrIndexUpdate = errors.New("index update failed")
)
