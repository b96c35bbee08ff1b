package services

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore persists uploaded files and returns a stable relative path.
type BlobStore interface {
	Save(dir, filename string, r io.Reader) (string, error)
	Delete(storedPath string) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// LocalStore keeps blobs under a root directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory served as /uploads.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes r to root/dir/<uuid><ext> and returns "uploads/dir/<uuid><ext>".
func (s *LocalStore) Save(dir, filename string, r io.Reader) (string, error) {
	dir = path.Clean("/" + filepath.ToSlash(dir))[1:]
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext

	target := filepath.Join(s.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(filepath.Join(target, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path.Join("uploads", dir, name), nil
}

// Delete removes a blob previously returned by Save.
func (s *LocalStore) Delete(storedPath string) error {
	rel := strings.TrimPrefix(path.Clean("/"+storedPath), "/uploads/")
	if rel == "" || strings.HasPrefix(rel, "/") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
