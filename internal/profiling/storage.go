package profiling

import (
	"fmt"
	"os"
)

// Storage persists profiling artifacts.
type Storage interface {
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// Remove deletes path. A missing file is not an error.
	Remove(path string) error
	// WriteFile writes data to path.
	WriteFile(path string, data []byte) error
}

// DirStorage stores artifacts on the local filesystem.
type DirStorage struct {
	// DirPerm is the mode for created directories (default: 0755).
	DirPerm os.FileMode
	// FilePerm is the mode for written files (default: 0644).
	FilePerm os.FileMode
}

// MkdirAll implements Storage.
func (s DirStorage) MkdirAll(dir string) error {
	perm := s.DirPerm
	if perm == 0 {
		perm = 0o755
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return nil
}

// Remove implements Storage.
func (s DirStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove previous artifact: %w", err)
	}
	return nil
}

// WriteFile implements Storage.
func (s DirStorage) WriteFile(path string, data []byte) error {
	perm := s.FilePerm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// replace writes data to path under dir, creating dir if needed and
// deleting any previous artifact first.
func replace(storage Storage, dir, path string, data []byte) error {
	if err := storage.MkdirAll(dir); err != nil {
		return err
	}
	if err := storage.Remove(path); err != nil {
		return err
	}
	return storage.WriteFile(path, data)
}
