package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
)

// FileStore implements port.PermanentStore on a local directory.
// Objects live at <dir>/<first two chars of name>/<name>.
type FileStore struct {
	dir string
}

var _ port.PermanentStore = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create file directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: abs}, nil
}

func (s *FileStore) Location(storageName string) string {
	prefix := storageName
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.dir, prefix, storageName)
}

func (s *FileStore) Promote(_ context.Context, stagingPath, location string) error {
	if err := within(s.dir, location); err != nil {
		return err
	}
	return move(stagingPath, location)
}

func (s *FileStore) Demote(_ context.Context, location, stagingPath string) error {
	if err := within(s.dir, location); err != nil {
		return err
	}
	return move(location, stagingPath)
}

func (s *FileStore) Remove(_ context.Context, location string) error {
	if err := within(s.dir, location); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// move renames src to dst, copying when they sit on different filesystems.
func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	logger.Debugw("Rename failed, falling back to copy", "src", src, "dst", dst, "error", err.Error())

	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
