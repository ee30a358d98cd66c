package objectstore

import (
	"context"
	"os"
	"path/filepath"
)

// LocalFS is a reference ReaderWriter backed by a local directory tree, used
// by tests and by the reference buffer pool.
type LocalFS struct {
	root string
}

func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *LocalFS) Read(_ context.Context, path string) ([]byte, bool, error) {
	b, err := os.ReadFile(l.abs(path))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (l *LocalFS) Write(_ context.Context, path string, data []byte, failIfExists bool) error {
	full := l.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if failIfExists {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (l *LocalFS) Delete(_ context.Context, path string) error {
	err := os.Remove(l.abs(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
