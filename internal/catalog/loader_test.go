package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCategory(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "plumbing.yaml", "id: plumbing\nname: Plumbing\ndescription: Pipes and fittings\n")
	writeCategory(t, dir, "electrical.yaml", "id: electrical\nname: Electrical\n")

	c := NewCatalog()
	if err := c.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	cats := c.List()
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	// List is sorted by name
	if cats[0].Name != "Electrical" || cats[1].Name != "Plumbing" {
		t.Errorf("unexpected sort order: %q, %q", cats[0].Name, cats[1].Name)
	}

	plumbing := c.Get("plumbing")
	if plumbing == nil {
		t.Fatal("plumbing category not found")
	}
	if plumbing.Description != "Pipes and fittings" {
		t.Errorf("unexpected description: %q", plumbing.Description)
	}

	if c.Get("gardening") != nil {
		t.Error("expected nil for unknown category")
	}
}

func TestLoadFromDirEmpty(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromDir(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestLoadFromDirDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "a.yaml", "id: plumbing\nname: Plumbing\n")
	writeCategory(t, dir, "b.yaml", "id: plumbing\nname: Plumbing Again\n")

	c := NewCatalog()
	if err := c.LoadFromDir(dir); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "plumbing.yaml", "id: plumbing\nname: Plumbing\n")
	writeCategory(t, dir, "electrical.yaml", "id: electrical\nname: Electrical\n")

	c := NewCatalog()
	if err := c.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	cats, err := c.Resolve([]string{"plumbing", "electrical"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(cats) != 2 || cats[0].ID != "plumbing" || cats[1].ID != "electrical" {
		t.Errorf("unexpected resolve result: %+v", cats)
	}

	if _, err := c.Resolve([]string{"plumbing", "gardening"}); err == nil {
		t.Error("expected error for unknown category id")
	}
}
