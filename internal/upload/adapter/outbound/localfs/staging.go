package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/spaolacci/murmur3"
)

const (
	stagingSuffix = ".part"
	fanoutBuckets = 256
)

var ErrOutsideRoot = errors.New("path outside store root")

// StagingStore implements port.StagingStore with one append-only file per session,
// spread over 256 sub-directories by murmur3 hash of the session id.
type StagingStore struct {
	dir   string
	fsync bool
}

var _ port.StagingStore = (*StagingStore)(nil)

func NewStagingStore(dir string, fsync bool) (*StagingStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &StagingStore{dir: abs, fsync: fsync}, nil
}

func (s *StagingStore) pathFor(sessionID string) string {
	bucket := murmur3.Sum32([]byte(sessionID)) % fanoutBuckets
	return filepath.Join(s.dir, fmt.Sprintf("%02x", bucket), sessionID+stagingSuffix)
}

func (s *StagingStore) Create(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	path := s.pathFor(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func (s *StagingStore) Size(_ context.Context, path string) (int64, error) {
	if err := s.checkRoot(path); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, port.ErrStagingMissing
		}
		return 0, err
	}
	return info.Size(), nil
}

func (s *StagingStore) Append(_ context.Context, path string, data []byte) (int, error) {
	if err := s.checkRoot(path); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, port.ErrStagingMissing
		}
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n, err := f.Write(data)
	if err != nil {
		return n, err
	}
	if s.fsync {
		if err := f.Sync(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *StagingStore) Remove(_ context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.checkRoot(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *StagingStore) checkRoot(path string) error {
	return within(s.dir, path)
}

func within(root, path string) error {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}
