package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

const (
	ErrOpenRootDir = "failed to open root directory %s: %w"
)

// FSRepository implements StorageRepository over a local directory.
// Keys never escape the root: lookups go through os.Root.
type FSRepository struct {
	root *os.Root
}

// NewFSRepository creates a filesystem storage repository rooted at
// basePath, creating the directory if it does not exist
func NewFSRepository(basePath string) (*FSRepository, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory %s: %w", basePath, err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf(ErrOpenRootDir, basePath, err)
	}

	return &FSRepository{
		root: root,
	}, nil
}

// List returns all file keys with the given prefix
func (f *FSRepository) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	if prefix == "" {
		prefix = "."
	}

	file, err := f.root.Open(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open directory %s: %w", prefix, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat directory %s: %w", prefix, err)
	}

	if !info.IsDir() {
		return []string{prefix}, nil
	}

	entries, err := file.Readdir(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", prefix, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			keys = append(keys, strings.ReplaceAll(filepath.Join(prefix, entry.Name()), "\\", "/"))
		}
	}

	return keys, nil
}

// Stat returns metadata for a key
func (f *FSRepository) Stat(ctx context.Context, key string) (fs.FileInfo, error) {
	info, err := f.root.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", key, err)
	}

	return info, nil
}

// Delete removes data by key
func (f *FSRepository) Delete(ctx context.Context, key string) error {
	if err := f.root.Remove(key); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("key not found: %s", key)
		}
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}

	return nil
}

// Close closes the root filesystem
func (f *FSRepository) Close() error {
	return f.root.Close()
}

// Ensure FSRepository implements StorageRepository interface
var _ ports.StorageRepository = (*FSRepository)(nil)
