package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aldergrove/arbor/internal/parser"
	"github.com/aldergrove/arbor/internal/storage"
)

// Indexing modes. The mode is fixed at construction; there is no runtime
// switching.
const (
	ModeImmediate = "immediate"
	ModeDeferred  = "deferred"
)

// ReconcileResult reports what a Reconcile call did.
type ReconcileResult struct {
	Rebuilt bool `json:"rebuilt"`
	Indexed int  `json:"indexed"`
	Failed  int  `json:"failed"`
}

// Coordinator is the single entry point content mutations flow through. It
// keeps the metadata cache and the full-text index in step with the content
// tree, either synchronously (immediate mode) or via a persisted dirty flag
// and periodic reconciliation (deferred mode).
type Coordinator interface {
	// NotifyChanged records that the page at path was created or modified.
	// Immediate mode indexes it before returning; errors (including parse
	// failures of the just-written file) surface to the caller.
	NotifyChanged(path string) error
	// NotifyDeleted records that the page at path was removed.
	NotifyDeleted(path string) error
	// Reconcile rebuilds both stores from the content tree: unconditionally
	// when force is true, otherwise only when pending changes exist.
	// Concurrent calls are coalesced into a single rebuild.
	Reconcile(ctx context.Context, force bool) (ReconcileResult, error)
	Mode() string
}

// NewCoordinator constructs the coordinator variant for mode. The dirty
// store is only consulted in deferred mode but is required either way so
// wiring stays uniform.
func NewCoordinator(mode string, db *DB, store storage.Provider, dirty DirtyStore, logger *slog.Logger) (Coordinator, error) {
	switch mode {
	case ModeImmediate, "":
		return &immediateCoordinator{db: db, store: store, logger: logger}, nil
	case ModeDeferred:
		if dirty == nil {
			return nil, fmt.Errorf("index: deferred mode requires a dirty store")
		}
		return &deferredCoordinator{db: db, store: store, dirty: dirty, logger: logger}, nil
	default:
		return nil, fmt.Errorf("index: unknown indexing mode %q", mode)
	}
}

type immediateCoordinator struct {
	db     *DB
	store  storage.Provider
	logger *slog.Logger
	group  singleflight.Group
}

func (c *immediateCoordinator) Mode() string { return ModeImmediate }

func (c *immediateCoordinator) NotifyChanged(path string) error {
	canonical := parser.CanonicalPath(path)
	data, err := c.store.Read(canonical)
	if err != nil {
		return fmt.Errorf("index: read %s: %w", canonical, err)
	}
	row, body, links, err := articleFromSource(canonical, data, time.Time{})
	if err != nil {
		return err
	}
	if err := c.db.UpsertArticle(row, body, links); err != nil {
		// The cache and search entries for this page may now disagree; the
		// next full rebuild repairs them.
		c.logger.Error("index: immediate update failed",
			slog.String("path", canonical),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (c *immediateCoordinator) NotifyDeleted(path string) error {
	garden, rest := parser.SplitGarden(parser.CanonicalPath(path))
	return c.db.DeleteArticle(garden, parser.GenerateSlug(rest))
}

func (c *immediateCoordinator) Reconcile(_ context.Context, _ bool) (ReconcileResult, error) {
	// Immediate mode keeps stores current per change; Reconcile is the
	// operator-invoked repair action and always rebuilds.
	v, err, _ := c.group.Do("rebuild", func() (any, error) {
		res, err := rebuildAll(c.db, c.store, c.logger, false)
		return ReconcileResult{Rebuilt: true, Indexed: res.Indexed, Failed: res.Failed}, err
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return v.(ReconcileResult), nil
}

type deferredCoordinator struct {
	db     *DB
	store  storage.Provider
	dirty  DirtyStore
	logger *slog.Logger
	group  singleflight.Group
}

func (c *deferredCoordinator) Mode() string { return ModeDeferred }

func (c *deferredCoordinator) NotifyChanged(_ string) error {
	return c.dirty.MarkDirty()
}

func (c *deferredCoordinator) NotifyDeleted(_ string) error {
	return c.dirty.MarkDirty()
}

func (c *deferredCoordinator) Reconcile(_ context.Context, force bool) (ReconcileResult, error) {
	if !force {
		dirty, err := c.dirty.IsDirty()
		if err != nil {
			return ReconcileResult{}, err
		}
		if !dirty {
			return ReconcileResult{Rebuilt: false}, nil
		}
	}

	v, err, _ := c.group.Do("rebuild", func() (any, error) {
		// A dirty flag whose changes left the tree byte-identical (a save
		// that rewrote the same content) skips the wipe; forced reconciles
		// always rebuild for real.
		res, err := rebuildAll(c.db, c.store, c.logger, !force)
		if err != nil {
			return ReconcileResult{}, err
		}
		if err := c.dirty.Clear(); err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{Rebuilt: !res.Unchanged, Indexed: res.Indexed, Failed: res.Failed}, nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return v.(ReconcileResult), nil
}
