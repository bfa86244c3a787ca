package index

import (
	"os"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "arbor-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM articles`).Scan(&count); err != nil {
		t.Fatalf("articles table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM meta`).Scan(&count); err != nil {
		t.Fatalf("meta table missing: %v", err)
	}
}

func TestUpsertAndFindBySlug(t *testing.T) {
	db := testDB(t)
	row := ArticleRow{
		Garden:      "blog",
		Slug:        "hello-world",
		Title:       "Hello World",
		FilePath:    "blog/hello-world.md",
		Checksum:    "abc123",
		Tags:        []string{"go", "test"},
		Status:      "published",
		UpdatedDate: "2024-03-01",
	}
	if err := db.UpsertArticle(row, "Greetings from the garden.", []string{"other-page"}); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	got, err := db.FindBySlug("blog", "hello-world")
	if err != nil {
		t.Fatalf("FindBySlug: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if got.Title != "Hello World" || got.Checksum != "abc123" {
		t.Errorf("row = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestFindBySlugAbsent(t *testing.T) {
	db := testDB(t)
	got, err := db.FindBySlug("blog", "missing")
	if err != nil {
		t.Fatalf("FindBySlug: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUpsertReplacesByKey(t *testing.T) {
	db := testDB(t)
	key := ArticleRow{Garden: "blog", Slug: "p", FilePath: "blog/p.md", Title: "First", Checksum: "1"}
	if err := db.UpsertArticle(key, "one", nil); err != nil {
		t.Fatal(err)
	}
	key.Title = "Second"
	key.Checksum = "2"
	if err := db.UpsertArticle(key, "two", nil); err != nil {
		t.Fatal(err)
	}

	n, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, _ := db.FindBySlug("blog", "p")
	if got.Title != "Second" || got.Checksum != "2" {
		t.Errorf("row = %+v", got)
	}
}

func TestSameSlugDifferentGardens(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "intro", Title: "Blog Intro", FilePath: "blog/intro.md"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "notes", Slug: "intro", Title: "Notes Intro", FilePath: "notes/intro.md"}, "", nil)

	rows, err := db.FindBySlugAnyGarden("intro")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Deterministic (garden, slug) order.
	if rows[0].Garden != "blog" || rows[1].Garden != "notes" {
		t.Errorf("order = %q, %q", rows[0].Garden, rows[1].Garden)
	}
}

func TestFindByTitleCaseInsensitive(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "go-tips", Title: "Go Tips", FilePath: "blog/go-tips.md"}, "", nil)

	rows, err := db.FindByTitle("go tips")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Slug != "go-tips" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestFindTitleLikeEscapesWildcards(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "pct", Title: "100% Done", FilePath: "pct.md"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "other", Title: "Something Else", FilePath: "other.md"}, "", nil)

	rows, err := db.FindTitleLike("100%")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Slug != "pct" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestDeleteArticle(t *testing.T) {
	db := testDB(t)
	row := ArticleRow{Garden: "blog", Slug: "gone", Title: "Gone", FilePath: "blog/gone.md"}
	_ = db.UpsertArticle(row, "body", []string{"target"})

	if err := db.DeleteArticle("blog", "gone"); err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	got, _ := db.FindBySlug("blog", "gone")
	if got != nil {
		t.Error("article still present after delete")
	}
	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM links WHERE source = ?`, row.URL()).Scan(&n)
	if n != 0 {
		t.Errorf("links remain after delete: %d", n)
	}

	// Idempotent.
	if err := db.DeleteArticle("blog", "gone"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	target := ArticleRow{Garden: "blog", Slug: "target-page", Title: "Target Page", FilePath: "blog/target-page.md"}
	_ = db.UpsertArticle(target, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "a", Title: "A", FilePath: "blog/a.md"}, "", []string{"Target Page"})
	_ = db.UpsertArticle(ArticleRow{Garden: "notes", Slug: "b", Title: "B", FilePath: "notes/b.md"}, "", []string{"blog/target-page"})
	_ = db.UpsertArticle(ArticleRow{Garden: "notes", Slug: "c", Title: "C", FilePath: "notes/c.md"}, "", []string{"unrelated"})

	links, err := db.Backlinks(target)
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("backlinks = %v", links)
	}
}

func TestRecentExcludesDrafts(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "old", Title: "Old", FilePath: "blog/old.md", Status: "published", UpdatedDate: "2024-01-01"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "new", Title: "New", FilePath: "blog/new.md", Status: "published", UpdatedDate: "2024-06-01"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "wip", Title: "WIP", FilePath: "blog/wip.md", Status: "draft", UpdatedDate: "2024-07-01"}, "", nil)

	rows, err := db.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Slug != "new" {
		t.Errorf("first = %q, want newest", rows[0].Slug)
	}
}

func TestListGardenDraftVisibility(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "pub", Title: "Pub", FilePath: "blog/pub.md", Status: "published", UpdatedDate: "2024-01-01"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "wip", Title: "WIP", FilePath: "blog/wip.md", Status: "draft", UpdatedDate: "2024-02-01"}, "", nil)

	pub, err := db.ListGarden("blog", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub) != 1 || pub[0].Slug != "pub" {
		t.Fatalf("published-only = %+v", pub)
	}
	all, err := db.ListGarden("blog", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("with drafts = %+v", all)
	}
}

func TestGardenExists(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "p", Title: "P", FilePath: "blog/p.md"}, "", nil)

	ok, err := db.GardenExists("blog")
	if err != nil || !ok {
		t.Errorf("GardenExists(blog) = %v, %v", ok, err)
	}
	ok, err = db.GardenExists("nope")
	if err != nil || ok {
		t.Errorf("GardenExists(nope) = %v, %v", ok, err)
	}
}

func TestAllSources(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "a", Title: "A", FilePath: "a.md", Checksum: "c1"}, "", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "b", Title: "B", FilePath: "blog/b.md", Checksum: "c2"}, "", nil)

	srcs, err := db.AllSources()
	if err != nil {
		t.Fatal(err)
	}
	if srcs["a.md"] != "c1" || srcs["blog/b.md"] != "c2" {
		t.Errorf("sources = %v", srcs)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := testDB(t)
	if v, err := db.GetMeta("missing"); err != nil || v != "" {
		t.Fatalf("GetMeta(missing) = %q, %v", v, err)
	}
	if err := db.SetMeta("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMeta("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta("k"); v != "v2" {
		t.Errorf("GetMeta(k) = %q", v)
	}
}

func TestArticleURL(t *testing.T) {
	if got := (ArticleRow{Slug: "about"}).URL(); got != "/page/about" {
		t.Errorf("root url = %q", got)
	}
	if got := (ArticleRow{Garden: "blog", Slug: "intro"}).URL(); got != "/garden/blog/intro" {
		t.Errorf("garden url = %q", got)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "a", Title: "A", FilePath: "a.md"}, "body", nil)

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Articles != 1 {
		t.Errorf("articles = %d", s.Articles)
	}
	if s.SizeBytes <= 0 {
		t.Errorf("size = %d", s.SizeBytes)
	}
	if !s.LastBuild.IsZero() {
		t.Errorf("last build should be zero before any rebuild, got %v", s.LastBuild)
	}
}
