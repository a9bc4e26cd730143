package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Metadata describes a file without reading it.
type Metadata struct {
	Path    string      `json:"path"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"mod_time"`
	Mode    fs.FileMode `json:"mode"`
}

// Source reads file bytes. Implementations must be safe for concurrent use.
type Source interface {
	Stat(path string) (Metadata, error)
	ReadFile(path string) ([]byte, error)
}

// OS reads from the local filesystem.
type OS struct{}

// Stat implements Source.
func (OS) Stat(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, err
	}
	if info.IsDir() {
		return Metadata{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrInvalid}
	}
	return Metadata{Path: path, Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode()}, nil
}

// ReadFile implements Source.
func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}

// Memory serves files from a map keyed by path. It must not be modified
// while in use.
type Memory map[string]string

// Stat implements Source.
func (m Memory) Stat(path string) (Metadata, error) {
	content, ok := m[path]
	if !ok {
		return Metadata{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return Metadata{Path: path, Size: int64(len(content)), Mode: 0o644}, nil
}

// ReadFile implements Source.
func (m Memory) ReadFile(path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(content), nil
}
