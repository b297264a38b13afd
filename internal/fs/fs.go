package fs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSystem is a minimal filesystem abstraction for certificate stores and
// exported key material.
type FileSystem interface {
	// MkdirAll creates a directory and all necessary parents
	MkdirAll(path string, perm fs.FileMode) error

	// ReadFile reads the entire file
	ReadFile(name string) ([]byte, error)

	// ReadDir lists the names of the regular files in a directory, sorted
	ReadDir(name string) ([]string, error)

	// WriteFileAtomic writes data to a file atomically
	// The write is atomic - either all data is written or none
	// For OS filesystems, this uses temp file + sync + rename
	// For in-memory filesystems, this can be a direct write
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error

	// IsNotExist returns true if the error indicates a file doesn't exist
	IsNotExist(err error) bool
}

// OSFileSystem is a FileSystem implementation using the real OS filesystem.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS filesystem
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// MkdirAll creates a directory and all necessary parents
func (f *OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ReadFile reads the entire file
func (f *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// ReadDir lists regular files in a directory
func (f *OSFileSystem) ReadDir(name string) ([]string, error) {
	entries, err := os.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic writes data to a file atomically using temp file + sync + rename
// Uses os.CreateTemp to avoid collision issues with concurrent writes
func (f *OSFileSystem) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	// Create temp file in the same directory as the target file
	// This ensures rename will be atomic (same filesystem)
	dir := filepath.Dir(name)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent deferred cleanup

	// Set proper permissions (CreateTemp creates with 0600)
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, name); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

// IsNotExist returns true if the error indicates a file doesn't exist
func (f *OSFileSystem) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// MemFileSystem is an in-memory FileSystem for tests.
// Paths are cleaned with forward slashes; directories are implicit.
type MemFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemFileSystem creates an empty in-memory filesystem
func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{files: make(map[string][]byte)}
}

// MkdirAll is a no-op; directories exist implicitly
func (m *MemFileSystem) MkdirAll(string, fs.FileMode) error {
	return nil
}

// ReadFile returns a copy of the stored bytes
func (m *MemFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[memPath(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// ReadDir lists the files directly under name
func (m *MemFileSystem) ReadDir(name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := memPath(name) + "/"
	var names []string
	for p := range m.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	if len(names) == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic stores a copy of data
func (m *MemFileSystem) WriteFileAtomic(name string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[memPath(name)] = append([]byte(nil), data...)
	return nil
}

// IsNotExist returns true if the error indicates a file doesn't exist
func (m *MemFileSystem) IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func memPath(name string) string {
	return path.Clean(filepath.ToSlash(name))
}
