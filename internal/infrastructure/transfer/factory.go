// Package transfer builds the transfer client for the configured storage backend.
package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/infrastructure/remote"
	"github.com/supplyhub/backend/internal/infrastructure/storage"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendSFTP  = "sftp"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewClient returns the client for cfg.Backend and a closer for any connection
// it holds. The closer is never nil.
func NewClient(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (ports.TransferClient, io.Closer, error) {
	switch cfg.Backend {
	case BackendLocal:
		c, err := storage.NewLocalClient(cfg.Local, log.Named("local"))
		if err != nil {
			return nil, nopCloser{}, err
		}
		return c, nopCloser{}, nil
	case BackendS3:
		c, err := storage.NewS3Client(ctx, cfg.S3, log.Named("s3"))
		if err != nil {
			return nil, nopCloser{}, err
		}
		return c, nopCloser{}, nil
	case BackendSFTP:
		c := remote.NewSFTPClient(cfg.SFTP, log.Named("sftp"))
		return c, c, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}
