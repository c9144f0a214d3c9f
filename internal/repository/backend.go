package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoSnapshot is returned by a Backend when no document has been written
// under its key yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Backend persists the simulator state as a single opaque document.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
}

// ──────────────────────────────────────────────────────────────────────────────
// MemoryBackend
// ──────────────────────────────────────────────────────────────────────────────

// MemoryBackend keeps the document in process memory. Used by tests and
// throwaway demo servers.
type MemoryBackend struct {
	mu  sync.RWMutex
	doc []byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Read returns a copy of the stored document.
func (b *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.doc == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), b.doc...), nil
}

// Write replaces the stored document with a copy of doc.
func (b *MemoryBackend) Write(_ context.Context, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = append([]byte(nil), doc...)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// FileBackend
// ──────────────────────────────────────────────────────────────────────────────

// FileBackend stores the document as a JSON file. Writes go to a temp file
// in the same directory and are renamed into place.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for path. Parent directories are created
// on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read loads the file contents.
func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("file_backend.Read: %w", err)
	}
	return data, nil
}

// Write atomically replaces the file.
func (b *FileBackend) Write(_ context.Context, doc []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file_backend.Write: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file_backend.Write: temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("file_backend.Write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file_backend.Write: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("file_backend.Write: rename: %w", err)
	}
	return nil
}
