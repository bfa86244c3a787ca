package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aldergrove/arbor/internal/models"
	"github.com/aldergrove/arbor/internal/parser"
	"github.com/aldergrove/arbor/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// memDirtyStore is an in-memory DirtyStore for coordinator tests.
type memDirtyStore struct {
	dirty bool
	marks int
}

func (s *memDirtyStore) IsDirty() (bool, error) { return s.dirty, nil }
func (s *memDirtyStore) MarkDirty() error       { s.dirty = true; s.marks++; return nil }
func (s *memDirtyStore) Clear() error           { s.dirty = false; return nil }

func TestNewCoordinatorModes(t *testing.T) {
	db := testDB(t)
	store := testStore(t)

	c, err := NewCoordinator("", db, store, nil, testLogger())
	if err != nil || c.Mode() != ModeImmediate {
		t.Errorf("default mode = %v, %v", c, err)
	}
	if _, err := NewCoordinator(ModeDeferred, db, store, nil, testLogger()); err == nil {
		t.Error("deferred mode without dirty store should fail")
	}
	if _, err := NewCoordinator("eventually", db, store, nil, testLogger()); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestImmediateNotifyChanged(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	content := []byte("---\ntitle: Growing Basil\ntags: [herbs]\n---\nBasil wants sun and [[Watering Basics]].\n")
	if err := store.Write("garden-log/growing-basil.md", content); err != nil {
		t.Fatal(err)
	}

	coord, err := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.NotifyChanged("garden-log/growing-basil.md"); err != nil {
		t.Fatalf("NotifyChanged: %v", err)
	}

	row, err := db.FindBySlug("garden-log", "growing-basil")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Title != "Growing Basil" {
		t.Fatalf("row = %+v", row)
	}

	links, err := db.Backlinks(ArticleRow{Garden: "", Slug: "watering-basics", Title: "Watering Basics"})
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Errorf("backlinks = %v", links)
	}
}

func TestImmediateNotifyChangedParseError(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	if err := store.Write("bad.md", []byte("---\ntitle: [unclosed\n---\nbody\n")); err != nil {
		t.Fatal(err)
	}

	coord, _ := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	err := coord.NotifyChanged("bad.md")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *parser.ParseError", err)
	}
}

func TestImmediateNotifyDeleted(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "gone", Title: "Gone", FilePath: "blog/gone.md"}, "", nil)

	coord, _ := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	if err := coord.NotifyDeleted("blog/gone.md"); err != nil {
		t.Fatalf("NotifyDeleted: %v", err)
	}
	if row, _ := db.FindBySlug("blog", "gone"); row != nil {
		t.Error("article still indexed after delete")
	}
}

func TestImmediatePageDirectoryPaths(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	if err := store.Write("blog/trip.page", []byte("---\ntitle: Trip Report\n---\nWe went.\n")); err != nil {
		t.Fatal(err)
	}

	coord, _ := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	// Watchers report the file inside the page directory; the coordinator
	// must land on the same (garden, slug) as the logical path.
	if err := coord.NotifyChanged("blog/trip.page/page.md"); err != nil {
		t.Fatalf("NotifyChanged: %v", err)
	}
	row, err := db.FindBySlug("blog", "trip")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("page-directory article not indexed")
	}
	if row.FilePath != "blog/trip.page" {
		t.Errorf("file path = %q", row.FilePath)
	}

	if err := coord.NotifyDeleted("blog/trip.page/page.md"); err != nil {
		t.Fatal(err)
	}
	if row, _ := db.FindBySlug("blog", "trip"); row != nil {
		t.Error("page-directory article still indexed after delete")
	}
}

func TestImmediateReconcileRebuilds(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	_ = store.Write("a.md", []byte("---\ntitle: A\n---\nalpha\n"))
	_ = store.Write("blog/b.md", []byte("---\ntitle: B\n---\nbeta\n"))

	// A stale row not backed by any file disappears on rebuild.
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "stale", Title: "Stale", FilePath: "stale.md"}, "", nil)

	coord, _ := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	res, err := coord.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Rebuilt || res.Indexed != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if row, _ := db.FindBySlug("", "stale"); row != nil {
		t.Error("stale row survived rebuild")
	}
	if row, _ := db.FindBySlug("blog", "b"); row == nil {
		t.Error("rebuilt article missing")
	}

	s, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if s.LastBuild.IsZero() {
		t.Error("rebuild should record its completion time")
	}
}

func TestReconcileSkipsUnparseableFiles(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	_ = store.Write("good.md", []byte("---\ntitle: Good\n---\nfine\n"))
	_ = store.Write("bad.md", []byte("---\ntitle: [unclosed\n---\nbody\n"))

	coord, _ := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	res, err := coord.Reconcile(context.Background(), true)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Indexed != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if row, _ := db.FindBySlug("", "good"); row == nil {
		t.Error("parseable file should still be indexed")
	}
}

func TestDeferredNotifyMarksDirty(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	dirty := &memDirtyStore{}

	coord, err := NewCoordinator(ModeDeferred, db, store, dirty, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("a.md", []byte("---\ntitle: A\n---\nalpha\n"))

	if err := coord.NotifyChanged("a.md"); err != nil {
		t.Fatal(err)
	}
	if !dirty.dirty {
		t.Fatal("dirty flag not set")
	}
	// No synchronous indexing in deferred mode.
	if n, _ := db.Count(); n != 0 {
		t.Errorf("count = %d, want 0 before reconcile", n)
	}

	// Marking again is a no-op error-wise; deletions mark too.
	if err := coord.NotifyDeleted("a.md"); err != nil {
		t.Fatal(err)
	}
}

func TestDeferredReconcile(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	dirty := &memDirtyStore{}
	_ = store.Write("a.md", []byte("---\ntitle: A\n---\nalpha\n"))

	coord, _ := NewCoordinator(ModeDeferred, db, store, dirty, testLogger())

	// Clean flag, no force: nothing happens.
	res, err := coord.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rebuilt {
		t.Fatal("clean reconcile should be a no-op")
	}

	_ = coord.NotifyChanged("a.md")
	res, err = coord.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rebuilt || res.Indexed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if dirty.dirty {
		t.Error("successful reconcile should clear the dirty flag")
	}

	// Force rebuilds even when clean.
	res, err = coord.Reconcile(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rebuilt {
		t.Error("forced reconcile should rebuild")
	}
}

// dumpIndex returns a stable textual snapshot of both derived stores,
// excluding the last_indexed timestamp.
func dumpIndex(t *testing.T, db *DB) string {
	t.Helper()
	var b strings.Builder

	rows, err := db.conn.Query(`
		SELECT garden, slug, title, file_path, checksum, description, body,
		       tags, status, created_date, published_date, updated_date
		FROM articles ORDER BY garden, slug`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		cols := make([]string, 12)
		ptrs := make([]any, 12)
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatal(err)
		}
		fmt.Fprintln(&b, strings.Join(cols, "|"))
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	links, err := db.conn.Query(`SELECT source, target FROM links ORDER BY source, target`)
	if err != nil {
		t.Fatal(err)
	}
	defer links.Close()
	for links.Next() {
		var src, dst string
		if err := links.Scan(&src, &dst); err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(&b, "link %s -> %s\n", src, dst)
	}
	if err := links.Err(); err != nil {
		t.Fatal(err)
	}

	docs, err := ftsDocCount(db)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(&b, "docs=%d\n", docs)
	return b.String()
}

func TestReconcileRebuildIdempotent(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	_ = store.Write("garden-log/growing-basil.md", []byte("---\ntitle: Growing Basil\ntags: [herbs, sun]\n---\nNeeds [[Watering Basics]].\n"))
	_ = store.Write("garden-log/drafts-corner.md", []byte("---\ntitle: Drafts Corner\nstatus: draft\n---\nHalf-formed.\n"))
	_ = store.Write("welcome.md", []byte("---\ntitle: Welcome\n---\nStart at [[garden-log/Growing Basil]].\n"))

	coord, err := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := coord.Reconcile(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	first := dumpIndex(t, db)

	if _, err := coord.Reconcile(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	second := dumpIndex(t, db)

	if first != second {
		t.Errorf("consecutive rebuilds diverged:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

// gatedStore holds every List call until released, keeping one rebuild in
// flight while more reconciles pile up behind it.
type gatedStore struct {
	storage.Provider
	gate  chan struct{}
	lists atomic.Int32
}

func (s *gatedStore) List(dir string) ([]models.FileMetadata, error) {
	s.lists.Add(1)
	<-s.gate
	return s.Provider.List(dir)
}

func TestConcurrentReconcileCoalesced(t *testing.T) {
	db := testDB(t)
	fs := testStore(t)
	_ = fs.Write("a.md", []byte("---\ntitle: A\n---\nalpha\n"))
	store := &gatedStore{Provider: fs, gate: make(chan struct{})}

	coord, err := NewCoordinator(ModeImmediate, db, store, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	const callers = 8
	results := make([]ReconcileResult, callers)
	errs := make([]error, callers)

	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = coord.Reconcile(context.Background(), true)
		}(i)
	}

	started.Wait()
	// Let every caller reach the coalescing point before the rebuild is
	// allowed to proceed.
	time.Sleep(100 * time.Millisecond)
	close(store.gate)
	done.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i].Rebuilt || results[i].Indexed != 1 {
			t.Errorf("caller %d result = %+v", i, results[i])
		}
	}
	if got := store.lists.Load(); got != 1 {
		t.Errorf("rebuild ran %d times, want 1", got)
	}
}

func TestDeferredReconcileUnchangedTree(t *testing.T) {
	db := testDB(t)
	store := testStore(t)
	dirty := &memDirtyStore{}
	_ = store.Write("a.md", []byte("---\ntitle: A\n---\nalpha\n"))

	coord, err := NewCoordinator(ModeDeferred, db, store, dirty, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coord.Reconcile(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	// Dirty flag set but the tree is byte-identical to the cache.
	_ = coord.NotifyChanged("a.md")
	res, err := coord.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rebuilt {
		t.Error("byte-identical tree should skip the rebuild")
	}
	if dirty.dirty {
		t.Error("skipped reconcile should still clear the dirty flag")
	}

	// A real content change rebuilds.
	_ = store.Write("a.md", []byte("---\ntitle: Alpha Revised\n---\nalpha two\n"))
	_ = coord.NotifyChanged("a.md")
	res, err = coord.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rebuilt {
		t.Fatal("changed tree should rebuild")
	}
	row, err := db.FindBySlug("", "a")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Title != "Alpha Revised" {
		t.Errorf("row = %+v", row)
	}
}
