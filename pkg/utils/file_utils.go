// =============================================================================
// pkg/utils/file_utils.go - File Utilities
// =============================================================================
package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"seedplay/pkg/api"
)

// OSStorage is api.Storage backed by the local filesystem
type OSStorage struct{}

var _ api.Storage = OSStorage{}

// Stat reports the on-disk size of path. A missing path is not an error.
func (OSStorage) Stat(path string) (int64, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return -1, false, nil
	}
	if err != nil {
		return -1, false, err
	}
	return info.Size(), true, nil
}

func (OSStorage) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func (OSStorage) Remove(path string) error {
	return os.Remove(path)
}

// RemoveEmptyDir removes dir only when it has no entries left
func (OSStorage) RemoveEmptyDir(dir string) (bool, error) {
	empty, err := IsEmptyDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil || !empty {
		return false, err
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	return true, nil
}

// IsEmptyDir checks if dir has no entries
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// CreateTempDir creates a temporary directory for downloads
func CreateTempDir() (string, error) {
	dir, err := os.MkdirTemp("", "seedplay-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
