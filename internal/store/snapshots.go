package store

import (
	"fmt"
	"os"
	"path/filepath"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
)

// LocalStorage keeps analyzed-image snapshots in a directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates basePath if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, omrerrors.NewStorageFailedError(basePath, fmt.Errorf("creating storage directory: %w", err))
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes data to basePath/filename and returns the full path. Only the
// base name of filename is used.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := l.path(filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", omrerrors.NewStorageFailedError(filename, fmt.Errorf("writing file: %w", err))
	}
	return path, nil
}

// Get reads a stored file by name or by the path Save returned.
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file.
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(l.path(name)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Dir returns the storage directory.
func (l *LocalStorage) Dir() string { return l.basePath }

func (l *LocalStorage) path(name string) string {
	return filepath.Join(l.basePath, filepath.Base(name))
}
