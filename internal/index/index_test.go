package index

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vaultbridge-test-*.db")
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

func snapshot(dataset, run string) Snapshot {
	return Snapshot{
		Dataset:  dataset,
		RunID:    run,
		Checksum: "sum-" + run,
		Documents: []models.DocumentMetadata{
			{
				FileName:     "A",
				RelativePath: "A.md",
				URI:          "obsidian://adv-uri?vault=V&filepath=A.md",
				StringTags:   "go",
				Aliases:      []string{"Alpha"},
				Frontmatter:  map[string]any{"status": "draft"},
				Links:        []models.NormalizedLink{{Link: "B", ResolvedPath: "Notes/B.md"}},
			},
			{
				FileName:     "B",
				RelativePath: "Notes/B.md",
				URI:          "obsidian://adv-uri?vault=V&filepath=Notes%2FB.md",
				Backlinks:    []models.BacklinkEntry{{SourcePath: "A.md", DisplayName: "A"}},
			},
		},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"exports", "documents", "links", "backlinks"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestReplaceDataset_StoresSnapshot(t *testing.T) {
	db := testDB(t)
	if err := db.ReplaceDataset(snapshot("tech", "r1")); err != nil {
		t.Fatalf("ReplaceDataset: %v", err)
	}

	bl, err := db.Backlinks("tech", "Notes/B.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].SourcePath != "A.md" || bl[0].DisplayName != "A" {
		t.Errorf("backlinks = %+v", bl)
	}

	var links int
	_ = db.conn.QueryRow(`SELECT count(*) FROM links WHERE dataset = 'tech'`).Scan(&links)
	if links != 1 {
		t.Errorf("links = %d, want 1", links)
	}

	var aliases string
	_ = db.conn.QueryRow(`SELECT aliases FROM documents WHERE dataset = 'tech' AND path = 'A.md'`).Scan(&aliases)
	if aliases != `["Alpha"]` {
		t.Errorf("aliases = %q, want %q", aliases, `["Alpha"]`)
	}
}

func TestReplaceDataset_ReplacesOnlyItsDataset(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceDataset(snapshot("tech", "r1"))
	_ = db.ReplaceDataset(snapshot("courses", "r2"))

	next := snapshot("tech", "r3")
	next.Documents = next.Documents[:1]
	if err := db.ReplaceDataset(next); err != nil {
		t.Fatalf("ReplaceDataset: %v", err)
	}

	var docs int
	_ = db.conn.QueryRow(`SELECT count(*) FROM documents WHERE dataset = 'tech'`).Scan(&docs)
	if docs != 1 {
		t.Errorf("tech documents = %d, want 1", docs)
	}
	bl, _ := db.Backlinks("tech", "Notes/B.md")
	if len(bl) != 0 {
		t.Errorf("stale backlinks kept: %+v", bl)
	}
	bl, _ = db.Backlinks("courses", "Notes/B.md")
	if len(bl) != 1 {
		t.Errorf("other dataset touched: %+v", bl)
	}

	rows, err := db.Exports()
	if err != nil {
		t.Fatalf("Exports: %v", err)
	}
	if len(rows) != 2 || rows[0].Dataset != "courses" || rows[1].RunID != "r3" || rows[1].Documents != 1 {
		t.Errorf("exports = %+v", rows)
	}
}

func TestBacklinks_UnknownDocument(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceDataset(snapshot("tech", "r1"))

	if _, err := db.Backlinks("tech", "Ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	bl, err := db.Backlinks("tech", "A.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 0 {
		t.Errorf("backlinks of A.md = %+v, want none", bl)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceDataset(snapshot("tech", "r1"))

	results, err := db.Search("tech", "Alpha", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "A.md" {
		t.Errorf("results = %+v", results)
	}

	results, _ = db.Search("courses", "Alpha", 10)
	if len(results) != 0 {
		t.Errorf("search leaked across datasets: %+v", results)
	}
}
