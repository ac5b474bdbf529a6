package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

// LocalClient stores assets as files under a root directory.
type LocalClient struct {
	root      string
	publicURL string
	log       *logger.Logger
}

func NewLocalClient(cfg config.LocalConfig, log *logger.Logger) (*LocalClient, error) {
	if cfg.Root == "" {
		return nil, errors.New("storage: local root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LocalClient{
		root:      cfg.Root,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		log:       log,
	}, nil
}

func (c *LocalClient) Upload(ctx context.Context, file domain.SourceFile, progress ports.ProgressReporter) (*domain.StoredObject, error) {
	key := ObjectKey("", file)

	tmp, err := os.CreateTemp(c.root, ".upload-*")
	if err != nil {
		return nil, domain.NewNetworkError("create", err)
	}
	written, err := CopyChunks(ctx, "write", tmp, file.Content, progress)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = domain.NewNetworkError("close", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.root, key)); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, domain.NewNetworkError("rename", err)
	}

	c.log.Debugw("local_object_written", "root", c.root, "key", key, "size", written)
	return &domain.StoredObject{
		Key:         key,
		URL:         c.objectURL(key),
		Size:        written,
		ContentType: file.ContentType,
	}, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (c *LocalClient) Remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(c.root, filepath.Base(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (c *LocalClient) objectURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return "file://" + filepath.ToSlash(filepath.Join(c.root, key))
}
