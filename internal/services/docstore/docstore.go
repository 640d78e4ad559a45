// Package docstore fetches uploaded application documents from the local
// document root.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"caseflow/internal/services"
)

// Store reads documents referenced by workflow instances. References are
// paths relative to the configured document root.
type Store struct {
	root string
}

// New constructs a Store rooted at dir.
func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("docstore: document root required")
	}
	return &Store{root: filepath.Clean(dir)}, nil
}

// Fetch returns the contents of a referenced document.
func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(
			services.ErrNotFound, "docstore", "fetch document",
			fmt.Sprintf("document %s is not in the store", ref), err)
	}
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "docstore", "fetch document",
			fmt.Sprintf("reading document %s failed", ref), err)
	}
	return data, nil
}

// Check reports whether the document root is reachable.
func (s *Store) Check() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("docstore root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("docstore root %s is not a directory", s.root)
	}
	return nil
}

// resolve maps a reference onto the root, rejecting escapes.
func (s *Store) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(
			services.ErrValidation, "docstore", "resolve document",
			"empty document reference", nil)
	}
	cleaned := filepath.Clean(ref)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", services.Wrap(
			services.ErrValidation, "docstore", "resolve document",
			fmt.Sprintf("document reference %s escapes the store", ref), nil)
	}
	return filepath.Join(s.root, cleaned), nil
}
