// Package preview keeps local copies of admitted files so clients can show them
// while uploads are in flight.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/supplyhub/backend/internal/core/upload"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

var ErrInvalidHandle = errors.New("preview: invalid handle")

// FileStore writes each preview to its own file under dir. Handles are file
// names, so they can be served statically.
type FileStore struct {
	dir string
	log *logger.Logger

	mu   sync.Mutex
	live map[string]struct{}
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "supplyhub-previews")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileStore{dir: dir, log: log, live: make(map[string]struct{})}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Allocate(ctx context.Context, file domain.SourceFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := uuid.NewString() + mimetype.Detect(file.Content).Extension()
	if err := os.WriteFile(filepath.Join(s.dir, handle), file.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}

	s.mu.Lock()
	s.live[handle] = struct{}{}
	s.mu.Unlock()
	return handle, nil
}

// Release deletes the preview. Releasing a handle twice returns
// upload.ErrPreviewReleased.
func (s *FileStore) Release(handle string) error {
	if handle == "" || strings.ContainsAny(handle, `/\`) {
		return ErrInvalidHandle
	}

	s.mu.Lock()
	_, ok := s.live[handle]
	delete(s.live, handle)
	s.mu.Unlock()
	if !ok {
		return upload.ErrPreviewReleased
	}

	err := os.Remove(filepath.Join(s.dir, handle))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove preview: %w", err)
	}
	return nil
}

func (s *FileStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Sweep removes preview files older than maxAge that no live task owns, such as
// leftovers from a previous process.
func (s *FileStore) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read preview dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, live := s.live[e.Name()]; live {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warnw("preview_sweep_failed", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
