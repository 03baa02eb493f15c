package media

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RecipeImageDir is the media-relative directory recipe images are written to.
const RecipeImageDir = "uploads/recipe"

// ErrInvalidPath is returned for media paths that are empty or escape the root.
var ErrInvalidPath = errors.New("invalid media path")

// Storage manages files below a media root. Paths handed in and out are
// media-relative and slash-separated ("uploads/recipe/<uuid>.jpg").
// Safe for concurrent use.
type Storage struct {
	root string
	mu   sync.RWMutex
}

// NewStorage creates the media root (and the recipe image directory) if needed.
func NewStorage(root string) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, filepath.FromSlash(RecipeImageDir)), 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &Storage{root: abs}, nil
}

// Root returns the absolute media root.
func (s *Storage) Root() string { return s.root }

// NewRecipeImagePath returns a fresh, collision-free relative path for a
// recipe image with the given extension (".jpg", ".png", ...).
func NewRecipeImagePath(ext string) string {
	return path.Join(RecipeImageDir, uuid.NewString()+strings.ToLower(ext))
}

// Save writes data to rel, replacing any existing file. The write goes to a
// temporary file first so readers never observe a partial image.
func (s *Storage) Save(rel string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}
	full, err := s.Path(rel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename image file: %w", err)
	}
	return nil
}

// Exists reports whether rel names an existing file.
func (s *Storage) Exists(rel string) bool {
	full, err := s.Path(rel)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err = os.Stat(full)
	return err == nil
}

// Delete removes rel. A missing file or an empty path is not an error.
func (s *Storage) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	full, err := s.Path(rel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image file: %w", err)
	}
	return nil
}

// Path maps a media-relative path to its filesystem location.
func (s *Storage) Path(rel string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(rel))
	if clean == "/" || strings.Contains(rel, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
