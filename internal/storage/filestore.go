package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps firmware binaries on the local filesystem, one file per
// image, keyed by filename.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory when missing
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create firmware dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes the raw bytes for a key, overwriting any previous content
func (f *FileStore) Put(name string, data []byte) error {
	return os.WriteFile(f.Path(name), data, 0o644)
}

// Get reads the raw bytes for a key
func (f *FileStore) Get(name string) ([]byte, error) {
	return os.ReadFile(f.Path(name))
}

// Path returns the on-disk location for a key. Keys are flattened to their
// base name so a crafted filename cannot escape the directory.
func (f *FileStore) Path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}
