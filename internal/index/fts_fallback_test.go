//go:build !sqlite_fts5

package index

import "testing"

func TestFallbackSearch(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "go-notes", Title: "Go Notes", FilePath: "blog/go-notes.md"}, "concurrency patterns in go", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "blog", Slug: "misc", Title: "Misc", FilePath: "blog/misc.md"}, "nothing relevant here", nil)

	results, err := db.Search("concurrency go", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "/garden/blog/go-notes" {
		t.Fatalf("results = %+v", results)
	}
}

func TestFallbackSearchTitleRanksFirst(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "in-body", Title: "Weekend", FilePath: "in-body.md"}, "gardening after lunch", nil)
	_ = db.UpsertArticle(ArticleRow{Garden: "", Slug: "in-title", Title: "Gardening Guide", FilePath: "in-title.md"}, "soil and light", nil)

	results, err := db.Search("gardening", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].URL != "/page/in-title" {
		t.Fatalf("results = %+v", results)
	}
}
