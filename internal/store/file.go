package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps each document in its own file.
type FileBackend struct {
	dir   string
	paths map[string]string
	mu    sync.Mutex
}

// NewFileBackend creates a file backend. Documents listed in paths use that
// file; any other document is stored as <dir>/<name>.json.
func NewFileBackend(dir string, paths map[string]string) *FileBackend {
	p := make(map[string]string, len(paths))
	for k, v := range paths {
		p[k] = v
	}
	return &FileBackend{dir: dir, paths: p}
}

// Path returns the file used for a document.
func (b *FileBackend) Path(name string) string {
	if p, ok := b.paths[name]; ok && p != "" {
		return p
	}
	return filepath.Join(b.dir, name+".json")
}

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Write implements Backend using a temp file and rename.
func (b *FileBackend) Write(ctx context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return writeAtomic(ctx, b.Path(name), data)
}

// Ping checks that every configured directory exists or can be created.
func (b *FileBackend) Ping(ctx context.Context) error {
	for _, name := range []string{SettingsDocument, LedgerDocument} {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Dir(b.Path(name))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("state directory %s: %w", dir, err)
		}
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}

func writeAtomic(ctx context.Context, file string, data []byte) error {
	if ctx.Err() != nil {
		return fmt.Errorf("write start: %w", ctx.Err())
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".*"+filepath.Base(file))
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, err := os.Stat(tmpName); err == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("set temp file permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("after temp file: %w", ctx.Err())
	}

	if err := os.Rename(tmpName, file); err != nil {
		return fmt.Errorf("move %s to %s: %w", tmpName, file, err)
	}
	return nil
}
