package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultbridge/internal/models"
)

func tempVault(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestRead(t *testing.T) {
	s := tempVault(t, map[string]string{"note.md": "# Hello\nWorld\n"})
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\nWorld\n" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestList_EntriesInWalkOrder(t *testing.T) {
	s := tempVault(t, map[string]string{
		"b.md":              "b",
		"a/c.md":            "c",
		"a/img.PNG":         "x",
		".obsidian/app.md":  "hidden",
		"a/.hidden-file.md": "hidden",
	})

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []models.Entry{
		{Kind: models.KindDirectory, Path: "a", Name: "a"},
		{Kind: models.KindDocument, Path: "a/c.md", Name: "c.md", Basename: "c", Extension: "md"},
		{Kind: models.KindDocument, Path: "a/img.PNG", Name: "img.PNG", Basename: "img", Extension: "png"},
		{Kind: models.KindDocument, Path: "b.md", Name: "b.md", Basename: "b", Extension: "md"},
	}
	if len(items) != len(want) {
		t.Fatalf("len = %d, want %d (%+v)", len(items), len(want), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t, nil)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestWriteFile_AtomicOverwrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "data.json")

	if err := WriteFile(target, []byte("original")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(target, []byte("updated")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "out", ".vaultbridge-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "vaultbridge-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestObjectKey(t *testing.T) {
	cases := map[[2]string]string{
		{"", "connections.json"}:            "connections.json",
		{"/exports/", "connections.json"}:   "exports/connections.json",
		{"a/b", "/tmp/out/courses.json"}:     "a/b/courses.json",
	}
	for in, want := range cases {
		if got := ObjectKey(in[0], in[1]); got != want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
