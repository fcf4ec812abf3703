package filewalker

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWalkFindsTemplates(t *testing.T) {
	root := t.TempDir()
	files := []string{"a.zpl", "b.PRN", "notes.md", filepath.Join("sub", "c.txt"), filepath.Join("sub", "d.png")}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("^XA^XZ"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := Walk(root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	var rels []string
	for _, e := range entries {
		rels = append(rels, e.Rel)
		if !filepath.IsAbs(e.Path) {
			t.Fatalf("path not absolute: %s", e.Path)
		}
	}
	want := []string{"a.zpl", "b.PRN", filepath.Join("sub", "c.txt")}
	if !slices.Equal(rels, want) {
		t.Fatalf("got %v, want %v", rels, want)
	}
}

func TestWalkRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zpl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Walk(path); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}
