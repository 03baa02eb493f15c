package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewStorage_CreatesRecipeDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	s, err := NewStorage(root)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(s.Root(), "uploads", "recipe")); err != nil || !fi.IsDir() {
		t.Fatalf("expected recipe dir, err=%v", err)
	}
	if _, err := NewStorage(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestNewRecipeImagePath(t *testing.T) {
	a := NewRecipeImagePath(".JPG")
	b := NewRecipeImagePath(".jpg")
	if !strings.HasPrefix(a, "uploads/recipe/") || !strings.HasSuffix(a, ".jpg") {
		t.Fatalf("unexpected path %q", a)
	}
	if a == b {
		t.Fatalf("expected unique paths")
	}
}

func TestStorage_SaveExistsDelete(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	rel := NewRecipeImagePath(".jpg")

	if err := s.Save(rel, []byte("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists(rel) {
		t.Fatalf("expected %s to exist", rel)
	}
	full, _ := s.Path(rel)
	if b, err := os.ReadFile(full); err != nil || string(b) != "data" {
		t.Fatalf("unexpected content %q err=%v", b, err)
	}
	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(full))
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}

	if err := s.Delete(rel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(rel) {
		t.Fatalf("expected %s to be gone", rel)
	}
	if err := s.Delete(rel); err != nil {
		t.Fatalf("deleting a missing file should be a no-op: %v", err)
	}
	if err := s.Delete(""); err != nil {
		t.Fatalf("deleting empty path should be a no-op: %v", err)
	}
}

func TestStorage_RejectsEmptyDataAndBadPaths(t *testing.T) {
	s, _ := NewStorage(t.TempDir())
	if err := s.Save("uploads/recipe/x.jpg", nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
	for _, rel := range []string{"", "/", "../escape.jpg", "uploads/../../x"} {
		if _, err := s.Path(rel); err != ErrInvalidPath {
			t.Fatalf("Path(%q): expected ErrInvalidPath, got %v", rel, err)
		}
	}
	if s.Exists("../x") {
		t.Fatalf("escaping path must not exist")
	}
}
