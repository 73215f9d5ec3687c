package tooling

import (
	"os"
	"sort"
)

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	ReadDir(path string) ([]DirEntry, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Stat(path string) (DirEntry, error)
	Rename(src, dst string) error
	Remove(path string) error
	RemoveAll(path string) error
	MkdirAll(path string) error
}

// DirEntry represents a directory entry returned by ReadDir or Stat.
type DirEntry struct {
	Name    string
	IsDir   bool
	Regular bool
}

// OsFileSystem implements FileSystem using the real os package.
type OsFileSystem struct{}

// ReadDir reads a real directory and returns its entries sorted by name.
// Symlinks are not followed: a link is neither a directory nor a regular file.
func (o *OsFileSystem) ReadDir(path string) ([]DirEntry, error) {
	osEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]DirEntry, 0, len(osEntries))
	for _, e := range osEntries {
		entries = append(entries, DirEntry{Name: e.Name(), IsDir: e.IsDir(), Regular: e.Type().IsRegular()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile reads a real file.
func (o *OsFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a real file, creating or truncating it.
func (o *OsFileSystem) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

// Stat describes the file at path, following symlinks.
func (o *OsFileSystem) Stat(path string) (DirEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: info.Name(), IsDir: info.IsDir(), Regular: info.Mode().IsRegular()}, nil
}

func (o *OsFileSystem) Rename(src, dst string) error { return os.Rename(src, dst) }

func (o *OsFileSystem) Remove(path string) error { return os.Remove(path) }

func (o *OsFileSystem) RemoveAll(path string) error { return os.RemoveAll(path) }

func (o *OsFileSystem) MkdirAll(path string) error { return os.MkdirAll(path, 0755) }
